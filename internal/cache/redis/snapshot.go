package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amvega/scalpbot/internal/domain"
)

// snapshotTTL bounds how long a stale snapshot survives after the bot stops.
const snapshotTTL = 10 * time.Second

// SnapshotPublisher implements domain.SnapshotPublisher: each engine
// snapshot is written to a key for poll-style consumers and published on a
// channel for push-style ones.
type SnapshotPublisher struct {
	rdb     *redis.Client
	key     string
	channel string
}

// NewSnapshotPublisher creates a publisher writing to scalpbot:<symbol>
// namespaced keys.
func NewSnapshotPublisher(c *Client, symbol string) *SnapshotPublisher {
	return &SnapshotPublisher{
		rdb:     c.Underlying(),
		key:     "scalpbot:" + symbol + ":snapshot",
		channel: "scalpbot:" + symbol + ":snapshots",
	}
}

// PublishSnapshot stores the payload under the snapshot key and fans it out
// on the pub/sub channel.
func (p *SnapshotPublisher) PublishSnapshot(ctx context.Context, payload []byte) error {
	if err := p.rdb.Set(ctx, p.key, payload, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish snapshot: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SnapshotPublisher = (*SnapshotPublisher)(nil)
