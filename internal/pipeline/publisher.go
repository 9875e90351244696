package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/zsiec/framekit/internal/config"
	"github.com/zsiec/framekit/internal/logger"
	"github.com/zsiec/framekit/internal/media/frame"
	"github.com/zsiec/framekit/internal/metrics"
)

const publishTimeout = 2 * time.Second

// InfoSource is satisfied by Pipeline
type InfoSource interface {
	Info() StreamInfo
}

// StatsPublisher is a sink that writes the stream's statistics to a Redis
// hash at most once per publish interval. The hash expires after the TTL
// unless refreshed, and the stream id is kept in the "<prefix>active" set.
type StatsPublisher struct {
	client  redis.UniversalClient
	source  InfoSource
	prefix  string
	ttl     time.Duration
	limiter *rate.Limiter
	logger  *logger.SampledLogger
	now     func() time.Time
}

func NewStatsPublisher(client redis.UniversalClient, cfg config.StatsConfig, source InfoSource, log logger.Logger) *StatsPublisher {
	return &StatsPublisher{
		client:  client,
		source:  source,
		prefix:  cfg.KeyPrefix,
		ttl:     cfg.TTL,
		limiter: rate.NewLimiter(rate.Every(cfg.PublishInterval), 1),
		logger:  logger.NewFrameLogger(logger.WithComponent(log, "stats_publisher")),
		now:     time.Now,
	}
}

// Key returns the hash key for a stream id
func (p *StatsPublisher) Key(streamID string) string {
	return p.prefix + streamID
}

func (p *StatsPublisher) activeKey() string {
	return p.prefix + "active"
}

// InputFrame publishes when the interval allows it. Frames are never
// reported as accepted.
func (p *StatsPublisher) InputFrame(f frame.Frame) bool {
	if !p.limiter.Allow() {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.Publish(ctx); err != nil {
		p.logger.Sample(logrus.WarnLevel, logger.CategoryStats, "Failed to publish stream stats", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return false
}

// Flush publishes unconditionally
func (p *StatsPublisher) Flush() {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.Publish(ctx); err != nil {
		p.logger.WithError(err).Warn("Failed to publish stream stats")
	}
}

// Publish writes the current statistics
func (p *StatsPublisher) Publish(ctx context.Context) error {
	info := p.source.Info()
	key := p.Key(info.ID)

	fields := map[string]interface{}{
		"codec":            info.Codec,
		"merge_mode":       info.MergeMode,
		"state":            string(info.State),
		"access_units":     info.Units,
		"frames":           info.Stats.Frames,
		"video_key_frames": info.Stats.VideoKeyFrames,
		"gop_size":         info.Stats.GOPSize,
		"gop_interval_ms":  info.Stats.GOPIntervalMs,
		"duration_ms":      info.Stats.DurationMs,
		"delegates":        info.Stats.Delegates,
		"updated_at":       p.now().UTC().Format(time.RFC3339Nano),
	}
	if info.Resolution != nil {
		fields["resolution"] = info.Resolution.String()
	}

	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, p.ttl)
		pipe.SAdd(ctx, p.activeKey(), info.ID)
		return nil
	})
	metrics.RecordStatsPublish(err)
	if err != nil {
		return fmt.Errorf("publish stats for %s: %w", info.ID, err)
	}
	return nil
}

// Remove takes an ended stream out of the active set. Its hash keeps the
// final statistics until the TTL expires.
func (p *StatsPublisher) Remove(ctx context.Context) error {
	id := p.source.Info().ID
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, p.activeKey(), id)
		pipe.Expire(ctx, p.Key(id), p.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove stats for %s: %w", id, err)
	}
	return nil
}
