package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/framekit/internal/config"
	"github.com/zsiec/framekit/internal/logger"
	"github.com/zsiec/framekit/internal/media/bitstream"
	"github.com/zsiec/framekit/internal/media/codec"
	"github.com/zsiec/framekit/internal/media/dispatcher"
	"github.com/zsiec/framekit/internal/media/frame"
)

type staticInfo struct{ info StreamInfo }

func (s *staticInfo) Info() StreamInfo { return s.info }

func newTestPublisher(t *testing.T, interval time.Duration) (*StatsPublisher, *miniredis.Miniredis, *staticInfo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	src := &staticInfo{info: StreamInfo{
		ID:        "abc",
		Codec:     "H264",
		MergeMode: "annexb",
		State:     StateRunning,
		Units:     7,
		Stats:     dispatcher.Stats{Frames: 7, VideoKeyFrames: 1, GOPSize: 7, DurationMs: 240, Delegates: 3},
	}}

	cfg := config.StatsConfig{
		Enabled:         true,
		PublishInterval: interval,
		KeyPrefix:       "framekit:stream:",
		TTL:             30 * time.Second,
	}
	p := NewStatsPublisher(client, cfg, src, logger.NewNullLogger())
	p.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return p, mr, src
}

func TestStatsPublisher_Publish(t *testing.T) {
	p, mr, _ := newTestPublisher(t, time.Second)

	require.NoError(t, p.Publish(context.Background()))

	key := "framekit:stream:abc"
	assert.Equal(t, key, p.Key("abc"))
	assert.Equal(t, "7", mr.HGet(key, "frames"))
	assert.Equal(t, "1", mr.HGet(key, "video_key_frames"))
	assert.Equal(t, "240", mr.HGet(key, "duration_ms"))
	assert.Equal(t, "running", mr.HGet(key, "state"))
	assert.Equal(t, "H264", mr.HGet(key, "codec"))
	assert.Equal(t, "2026-01-02T03:04:05Z", mr.HGet(key, "updated_at"))
	assert.Equal(t, 30*time.Second, mr.TTL(key))

	assert.Empty(t, mr.HGet(key, "resolution"))

	members, err := mr.Members("framekit:stream:active")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, members)
}

func TestStatsPublisher_PublishesResolution(t *testing.T) {
	p, mr, src := newTestPublisher(t, time.Second)
	src.info.Resolution = &bitstream.Resolution{Width: 1920, Height: 1080}

	require.NoError(t, p.Publish(context.Background()))
	assert.Equal(t, "1920x1080", mr.HGet("framekit:stream:abc", "resolution"))
}

func TestStatsPublisher_Throttled(t *testing.T) {
	p, mr, src := newTestPublisher(t, time.Hour)
	f := frame.NewOwned(codec.H264, 0, []byte{1})

	assert.False(t, p.InputFrame(f), "publisher never accepts frames")
	assert.Equal(t, "7", mr.HGet("framekit:stream:abc", "frames"))

	src.info.Stats.Frames = 8
	p.InputFrame(f)
	assert.Equal(t, "7", mr.HGet("framekit:stream:abc", "frames"), "second publish within the interval is skipped")

	p.Flush()
	assert.Equal(t, "8", mr.HGet("framekit:stream:abc", "frames"), "Flush always publishes")
}

func TestStatsPublisher_Remove(t *testing.T) {
	p, mr, _ := newTestPublisher(t, time.Second)
	require.NoError(t, p.Publish(context.Background()))

	mr.FastForward(10 * time.Second)
	require.NoError(t, p.Remove(context.Background()))

	assert.Equal(t, "7", mr.HGet("framekit:stream:abc", "frames"))
	assert.Equal(t, 30*time.Second, mr.TTL("framekit:stream:abc"))
	ok, _ := mr.SIsMember("framekit:stream:active", "abc")
	assert.False(t, ok)

	mr.FastForward(31 * time.Second)
	assert.False(t, mr.Exists("framekit:stream:abc"))
}

func TestStatsPublisher_RedisDown(t *testing.T) {
	p, mr, _ := newTestPublisher(t, time.Second)
	mr.Close()

	assert.Error(t, p.Publish(context.Background()))
	assert.NotPanics(t, func() { p.Flush() })
}

func TestStatsPublisher_AsDispatcherSink(t *testing.T) {
	p, err := New(testConfig("annexb"), logger.NewNullLogger(), WithStreamID("live"))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg := config.StatsConfig{PublishInterval: time.Hour, KeyPrefix: "fk:", TTL: time.Minute}
	p.Dispatcher().AddDelegate(NewStatsPublisher(client, cfg, p, logger.NewNullLogger()))

	require.NoError(t, p.Run(context.Background(), bytesReader(testStream())))

	assert.Equal(t, "5", mr.HGet("fk:live", "frames"), "final flush publishes the totals")
	assert.Equal(t, "2", mr.HGet("fk:live", "video_key_frames"))
}
