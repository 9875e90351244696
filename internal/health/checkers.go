package health

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisChecker pings the Redis instance statistics are published to.
type RedisChecker struct {
	client redis.UniversalClient
}

func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

func (r *RedisChecker) Name() string { return "redis" }

func (r *RedisChecker) Check(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client not configured")
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// FrameCounter is satisfied by the dispatcher.
type FrameCounter interface {
	Frames() uint64
}

// StreamChecker reports a stream as degraded when its frame count stops
// advancing for longer than stallAfter.
type StreamChecker struct {
	name       string
	counter    FrameCounter
	stallAfter time.Duration
	now        func() time.Time

	mu         sync.Mutex
	lastFrames uint64
	lastChange time.Time
}

func NewStreamChecker(name string, counter FrameCounter, stallAfter time.Duration) *StreamChecker {
	return &StreamChecker{
		name:       name,
		counter:    counter,
		stallAfter: stallAfter,
		now:        time.Now,
		lastChange: time.Now(),
	}
}

func (s *StreamChecker) Name() string { return "stream:" + s.name }

func (s *StreamChecker) Check(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	frames := s.counter.Frames()
	if frames != s.lastFrames {
		s.lastFrames = frames
		s.lastChange = now
		return nil
	}

	if idle := now.Sub(s.lastChange); idle > s.stallAfter {
		return Degraded(fmt.Sprintf("no frames for %s", idle.Truncate(time.Millisecond)))
	}
	return nil
}

func (s *StreamChecker) Details() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]interface{}{"frames": s.lastFrames}
}

// MemoryChecker is degraded when the Go heap grows beyond maxHeapBytes.
type MemoryChecker struct {
	maxHeapBytes uint64
	heapAlloc    uint64
	mu           sync.Mutex
}

func NewMemoryChecker(maxHeapBytes uint64) *MemoryChecker {
	return &MemoryChecker{maxHeapBytes: maxHeapBytes}
}

func (m *MemoryChecker) Name() string { return "memory" }

func (m *MemoryChecker) Check(ctx context.Context) error {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m.mu.Lock()
	m.heapAlloc = ms.HeapAlloc
	m.mu.Unlock()

	if m.maxHeapBytes > 0 && ms.HeapAlloc > m.maxHeapBytes {
		return Degraded(fmt.Sprintf("heap %d bytes exceeds %d", ms.HeapAlloc, m.maxHeapBytes))
	}
	return nil
}

func (m *MemoryChecker) Details() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]interface{}{"heap_alloc_bytes": m.heapAlloc}
}
