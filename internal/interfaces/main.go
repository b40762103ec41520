package interfaces

import (
	"context"

	"github.com/go-redis/redis_rate/v10"
)

type Limiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) error
}

// Notifier delivers badge lifecycle notifications. Delivery is fire and
// forget; a failed notification never rolls back an applied reward.
type Notifier interface {
	Notify(ctx context.Context, userID int64, kind string, payload map[string]any) error
}
