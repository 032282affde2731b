package routing

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper remembers recently ingested delivered-message ids so gateway
// redeliveries do not get routed twice. Fails open: without redis, or when
// redis is unreachable, every message is treated as unseen.
type Deduper struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewDeduper builds a Deduper. A nil client disables deduplication.
func NewDeduper(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	return &Deduper{client: client, ttl: ttl, logger: logger}
}

// Seen records the message id and reports whether it was already recorded.
func (d *Deduper) Seen(ctx context.Context, messageID string) bool {
	if d == nil || d.client == nil || messageID == "" {
		return false
	}
	fresh, err := d.client.SetNX(ctx, "ingest:seen:"+messageID, 1, d.ttl).Result()
	if err != nil {
		d.logger.Warn("dedupe check failed", zap.String("message_id", messageID), zap.Error(err))
		return false
	}
	return !fresh
}
