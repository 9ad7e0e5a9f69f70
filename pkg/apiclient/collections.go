package apiclient

import (
	"fmt"
	"net/url"

	"github.com/vexfs/vexfs/pkg/httpshim"
)

// ListCollections returns every collection on the server.
func (c *Client) ListCollections() ([]httpshim.CollectionWire, error) {
	var cols []httpshim.CollectionWire
	_, err := c.get("/api/v1/collections", &cols)
	return cols, err
}

// CreateCollection creates a collection with the given dimensions and
// distance metric ("l2", "cosine", or "inner_product").
func (c *Client) CreateCollection(name string, dimensions uint32, metric string) error {
	req := httpshim.CreateCollectionRequest{Name: name, Dimensions: dimensions, Metric: metric}
	_, err := c.post("/api/v1/collections", req, nil)
	return err
}

// DeleteCollection deletes the named collection.
func (c *Client) DeleteCollection(name string) error {
	_, err := c.delete("/api/v1/collections/" + url.PathEscape(name))
	return err
}

// Upsert inserts or replaces one vector in collection.
func (c *Client) Upsert(collection string, id uint64, vec []float32, metadata map[string]string) error {
	req := httpshim.UpsertRequest{ID: id, Vector: vec, Metadata: metadata}
	path := fmt.Sprintf("/api/v1/collections/%s/vectors", url.PathEscape(collection))
	_, err := c.post(path, req, nil)
	return err
}

// Search returns the top-k nearest neighbors to query in collection.
func (c *Client) Search(collection string, query []float32, k int) ([]httpshim.HitWire, error) {
	req := httpshim.SearchRequest{Vector: query, K: k}
	path := fmt.Sprintf("/api/v1/collections/%s/search", url.PathEscape(collection))
	var resp httpshim.SearchResponse
	_, err := c.post(path, req, &resp)
	return resp.Hits, err
}

// Metrics returns the server's aggregate metrics.
func (c *Client) Metrics() (httpshim.MetricsWire, error) {
	var m httpshim.MetricsWire
	_, err := c.get("/api/v1/metrics", &m)
	return m, err
}

// Health returns the server's health.
func (c *Client) Health() (httpshim.HealthWire, error) {
	var h httpshim.HealthWire
	_, err := c.get("/health", &h)
	return h, err
}
