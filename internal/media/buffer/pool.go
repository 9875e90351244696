package buffer

import (
	"sort"
	"sync"
	"sync/atomic"
)

// DefaultSizeClasses covers single NAL units up to large keyframes
var DefaultSizeClasses = []int{4 << 10, 64 << 10, 512 << 10, 4 << 20}

// Pool hands out Shared buffers from size-classed free lists. Requests larger
// than the biggest class are allocated directly and never pooled.
type Pool struct {
	classes []int
	pools   []sync.Pool

	gets   atomic.Int64
	puts   atomic.Int64
	allocs atomic.Int64
}

// NewPool creates a pool with the given size classes (DefaultSizeClasses if none)
func NewPool(classes ...int) *Pool {
	if len(classes) == 0 {
		classes = DefaultSizeClasses
	}
	sorted := append([]int(nil), classes...)
	sort.Ints(sorted)

	p := &Pool{
		classes: sorted,
		pools:   make([]sync.Pool, len(sorted)),
	}
	return p
}

// Get returns a buffer of length size holding one reference
func (p *Pool) Get(size int) *Shared {
	p.gets.Add(1)

	class := p.classFor(size)
	if class < 0 {
		p.allocs.Add(1)
		return NewShared(make([]byte, size), nil)
	}

	var data []byte
	if v := p.pools[class].Get(); v != nil {
		data = (*v.(*[]byte))[:size]
	} else {
		p.allocs.Add(1)
		data = make([]byte, size, p.classes[class])
	}
	return NewShared(data, p.put)
}

func (p *Pool) put(data []byte) {
	class := p.classFor(cap(data))
	if class < 0 || p.classes[class] != cap(data) {
		return
	}
	p.puts.Add(1)
	data = data[:0]
	p.pools[class].Put(&data)
}

func (p *Pool) classFor(size int) int {
	for i, c := range p.classes {
		if size <= c {
			return i
		}
	}
	return -1
}

// PoolStats holds buffer pool statistics
type PoolStats struct {
	Gets   int64
	Puts   int64
	Allocs int64
}

// Stats returns pool statistics
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Gets:   p.gets.Load(),
		Puts:   p.puts.Load(),
		Allocs: p.allocs.Load(),
	}
}
