package vector

// BatchDistance computes the distance from query to every vector in
// ids, processing them in fixed-size chunks and drawing scratch space
// from the buffer pool rather than the heap (§4.6: "batch size capped
// so cumulative stack+buffer cost stays within the envelope").
func (x *Index) BatchDistance(query []float32, ids []uint64, chunkSize int) ([]Result, error) {
	if err := x.validate(query); err != nil {
		return nil, err
	}
	if chunkSize <= 0 {
		chunkSize = 32
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]Result, 0, len(ids))
	scratch := x.pool.get(chunkSize)
	defer x.pool.put(scratch)

	for start := 0; start < len(ids); start += chunkSize {
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		for i, id := range chunk {
			n, ok := x.nodes[id]
			if !ok {
				continue
			}
			d := x.cfg.Metric.distance(query, n.vector)
			if i < len(scratch) {
				scratch[i] = d
			}
			out = append(out, Result{ID: id, Distance: d})
		}
	}
	return out, nil
}
