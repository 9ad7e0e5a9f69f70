package httpshim

import (
	"fmt"

	"github.com/vexfs/vexfs/pkg/vector"
)

// MetricName renders m as the string a dialect adapter puts on the wire.
func MetricName(m vector.Metric) string {
	switch m {
	case vector.MetricCosine:
		return "cosine"
	case vector.MetricInnerProduct:
		return "inner_product"
	default:
		return "l2"
	}
}

// ParseMetric parses a wire metric name. An empty name selects L2; an
// unknown name is an error.
func ParseMetric(name string) (vector.Metric, error) {
	switch name {
	case "", "l2":
		return vector.MetricL2, nil
	case "cosine":
		return vector.MetricCosine, nil
	case "inner_product":
		return vector.MetricInnerProduct, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", name)
	}
}

// CollectionWire is the JSON shape of a CollectionInfo.
type CollectionWire struct {
	Name       string `json:"name"`
	Dimensions uint32 `json:"dimensions"`
	Metric     string `json:"metric"`
	Count      int    `json:"count"`
}

// ToWire converts a CollectionInfo to its wire shape.
func (c CollectionInfo) ToWire() CollectionWire {
	return CollectionWire{Name: c.Name, Dimensions: c.Dimensions, Metric: MetricName(c.Metric), Count: c.Count}
}

// CreateCollectionRequest is the body of POST /api/v1/collections.
type CreateCollectionRequest struct {
	Name       string `json:"name"`
	Dimensions uint32 `json:"dimensions"`
	Metric     string `json:"metric"`
}

// UpsertRequest is the body of POST /api/v1/collections/{name}/vectors.
type UpsertRequest struct {
	ID       uint64            `json:"id"`
	Vector   []float32         `json:"vector"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SearchRequest is the body of POST /api/v1/collections/{name}/search.
type SearchRequest struct {
	Vector []float32 `json:"vector"`
	K      int       `json:"k"`
}

// HitWire is the JSON shape of a Hit.
type HitWire struct {
	ID       uint64            `json:"id"`
	Distance float32           `json:"distance"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Hits []HitWire `json:"hits"`
}

// ToWireHits converts search Hits to their wire shape.
func ToWireHits(hits []Hit) []HitWire {
	out := make([]HitWire, 0, len(hits))
	for _, h := range hits {
		out = append(out, HitWire{ID: h.ID, Distance: h.Distance, Metadata: h.Metadata})
	}
	return out
}

// MetricsWire is the JSON shape of Metrics.
type MetricsWire struct {
	Collections    int    `json:"collections"`
	TotalVectors   int    `json:"total_vectors"`
	SearchesTotal  uint64 `json:"searches_total"`
	AvgLatencyUs   int64  `json:"avg_latency_us"`
}

// ToWire converts Metrics to its wire shape.
func (m Metrics) ToWire() MetricsWire {
	return MetricsWire{
		Collections:   m.Collections,
		TotalVectors:  m.TotalVectors,
		SearchesTotal: m.SearchesTotal,
		AvgLatencyUs:  m.AvgLatency.Microseconds(),
	}
}

// HealthWire is the JSON shape of Health.
type HealthWire struct {
	Healthy     bool `json:"healthy"`
	Collections int  `json:"collections"`
}

// ToWire converts Health to its wire shape.
func (h Health) ToWire() HealthWire {
	return HealthWire{Healthy: h.Healthy, Collections: h.Collections}
}
