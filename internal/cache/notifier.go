// Package cache signals read-side caches after committed ledger
// mutations so they never serve a stale privilege decision.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const (
	// Channel carries invalidation messages to subscribed read models.
	Channel = "whitelist:invalidate"

	// markerTTL bounds how long a missed pub/sub message can go
	// unnoticed: read models treat a present marker key as stale.
	markerTTL = 30 * time.Second
)

// Notifier publishes invalidation signals over Redis. Every signal is
// both published on the channel and written as a short-lived marker
// key, so a subscriber that missed the message under a race still
// observes staleness on its next read.
type Notifier struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewNotifier creates a cache invalidation notifier.
func NewNotifier(client rueidis.Client, logger *zap.Logger) *Notifier {
	return &Notifier{
		client: client,
		logger: logger.Named("cache_notifier"),
	}
}

// InvalidateGame signals that decisions for one game identity changed.
func (n *Notifier) InvalidateGame(ctx context.Context, gameID string) {
	n.signal(ctx, "game:"+gameID)
}

// InvalidateUser signals that decisions tied to a Discord user changed.
// Used when no game identity is known, e.g. unlinked placeholders.
func (n *Notifier) InvalidateUser(ctx context.Context, discordUserID uint64) {
	n.signal(ctx, fmt.Sprintf("user:%d", discordUserID))
}

func (n *Notifier) signal(ctx context.Context, target string) {
	if err := n.publish(ctx, target); err != nil {
		// One retry before surfacing; the marker key below still covers
		// subscribers when the publish is lost.
		if err = n.publish(ctx, target); err != nil {
			n.logger.Error("Failed to publish invalidation",
				zap.String("target", target),
				zap.Error(err))
		}
	}

	err := n.client.Do(ctx,
		n.client.B().Set().Key(Channel+":"+target).Value("1").Ex(markerTTL).Build(),
	).Error()
	if err != nil {
		n.logger.Error("Failed to set invalidation marker",
			zap.String("target", target),
			zap.Error(err))

		return
	}

	n.logger.Debug("Invalidated cache", zap.String("target", target))
}

func (n *Notifier) publish(ctx context.Context, target string) error {
	return n.client.Do(ctx,
		n.client.B().Publish().Channel(Channel).Message(target).Build(),
	).Error()
}
