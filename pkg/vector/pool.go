package vector

import "sync"

// bufferPool is a tiered, size-classed free-list standing in for the
// kernel-safety memory pool described in §4.6. BatchDistance draws its
// scratch buffers from it; Search's candidate and result lists are
// ordinary heap allocations that do not go through the pool. Every miss
// is a fresh heap allocation and is counted.
type bufferPool struct {
	mu      sync.Mutex
	classes map[int][][]float32
	misses  int
	hits    int
}

func newBufferPool() *bufferPool {
	return &bufferPool{classes: make(map[int][][]float32)}
}

// sizeClass rounds n up to the next power-of-two bucket. The number of
// classes is not bounded.
func sizeClass(n int) int {
	c := 1
	for c < n {
		c <<= 1
	}
	return c
}

func (p *bufferPool) get(n int) []float32 {
	class := sizeClass(n)
	p.mu.Lock()
	defer p.mu.Unlock()
	bucket := p.classes[class]
	if len(bucket) == 0 {
		p.misses++
		return make([]float32, n, class)
	}
	p.hits++
	buf := bucket[len(bucket)-1]
	p.classes[class] = bucket[:len(bucket)-1]
	return buf[:n]
}

func (p *bufferPool) put(buf []float32) {
	class := cap(buf)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.classes[class] = append(p.classes[class], buf)
}

// Stats reports pool hit/miss counters for the search subsystem's
// kernel-allocation accounting (§4.6 IOCTL stats: "kernel allocations").
func (p *bufferPool) Stats() (hits, misses int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits, p.misses
}
