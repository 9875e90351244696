package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zsiec/framekit/internal/media/buffer"
)

// PoolCollector exports buffer pool statistics
type PoolCollector struct {
	pool *buffer.Pool

	gets   *prometheus.Desc
	puts   *prometheus.Desc
	allocs *prometheus.Desc
}

// NewPoolCollector creates a collector for pool; name is attached as a const label
func NewPoolCollector(name string, pool *buffer.Pool) *PoolCollector {
	labels := prometheus.Labels{"pool": name}
	return &PoolCollector{
		pool:   pool,
		gets:   prometheus.NewDesc("framekit_buffer_pool_gets_total", "Buffers handed out by the pool", nil, labels),
		puts:   prometheus.NewDesc("framekit_buffer_pool_puts_total", "Buffers returned to the pool", nil, labels),
		allocs: prometheus.NewDesc("framekit_buffer_pool_allocs_total", "Buffers the pool had to allocate", nil, labels),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.gets
	ch <- c.puts
	ch <- c.allocs
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stats()
	ch <- prometheus.MustNewConstMetric(c.gets, prometheus.CounterValue, float64(s.Gets))
	ch <- prometheus.MustNewConstMetric(c.puts, prometheus.CounterValue, float64(s.Puts))
	ch <- prometheus.MustNewConstMetric(c.allocs, prometheus.CounterValue, float64(s.Allocs))
}

// RegisterPool registers a PoolCollector with reg, returning the existing
// collector if one for the same pool name is already registered.
func RegisterPool(reg prometheus.Registerer, name string, pool *buffer.Pool) (prometheus.Collector, error) {
	c := NewPoolCollector(name, pool)
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector, nil
		}
		return nil, err
	}
	return c, nil
}
