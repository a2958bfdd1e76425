// -----------------------------------------------------------------------
// Progress Broadcaster - best-effort live fan-out over Redis
// -----------------------------------------------------------------------

package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"
	"github.com/voluma/forge/internal/common"
	"github.com/voluma/forge/internal/interfaces"
)

const defaultSnapshotTTL = time.Hour

// RedisBroadcaster writes a keyed snapshot for late subscribers and emits the
// same payload on a shared channel for live ones. Both writes happen only
// after the durable job store write; neither is allowed to fail the caller.
type RedisBroadcaster struct {
	client      *redis.Client
	channel     string
	snapshotTTL time.Duration
	logger      arbor.ILogger
}

// NewRedisBroadcaster connects to Redis. Connection failure at startup is
// surfaced so the operator sees it; failures after startup degrade to
// store-only operation.
func NewRedisBroadcaster(cfg *common.RedisConfig, logger arbor.ILogger) (*RedisBroadcaster, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	ttl := defaultSnapshotTTL
	if cfg.SnapshotTTL != "" {
		if parsed, err := time.ParseDuration(cfg.SnapshotTTL); err == nil {
			ttl = parsed
		} else {
			logger.Warn().Err(err).Str("snapshot_ttl", cfg.SnapshotTTL).Msg("Invalid snapshot TTL, using default")
		}
	}

	logger.Info().Str("addr", cfg.Addr).Str("channel", cfg.Channel).Msg("Redis broadcaster connected")

	return &RedisBroadcaster{
		client:      client,
		channel:     cfg.Channel,
		snapshotTTL: ttl,
		logger:      logger,
	}, nil
}

// SnapshotKey returns the Redis key holding the latest snapshot for a job.
func SnapshotKey(jobID string) string {
	return "job_progress:" + jobID
}

// Publish writes the snapshot and emits on the channel. No ordering guarantee
// between the two beyond both being attempted. Returns the first error for
// logging; callers swallow it.
func (b *RedisBroadcaster) Publish(ctx context.Context, event *interfaces.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal progress event: %w", err)
	}

	var firstErr error
	if err := b.client.Set(ctx, SnapshotKey(event.JobID), payload, b.snapshotTTL).Err(); err != nil {
		firstErr = fmt.Errorf("snapshot write failed: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("channel publish failed: %w", err)
	}
	return firstErr
}

// Close releases the Redis connection.
func (b *RedisBroadcaster) Close() error {
	return b.client.Close()
}
