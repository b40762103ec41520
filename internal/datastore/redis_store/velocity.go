package redis_store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

func dbKeyClaimVelocityUser(userID int64) string {
	return fmt.Sprintf("velocity:claims:user:%d", userID)
}

func dbKeyClaimVelocityUserHour(userID int64) string {
	return fmt.Sprintf("velocity:claims:user:%d:1h", userID)
}

func dbKeyClaimVelocityIP(ip string) string {
	return fmt.Sprintf("velocity:claims:ip:%s", ip)
}

func dbKeyClaimVelocityBadge(badgeID int64) string {
	return fmt.Sprintf("velocity:claims:badge:%d", badgeID)
}

func dbKeyXPVelocity(userID int64) string {
	return fmt.Sprintf("velocity:xp:%d", userID)
}

// Rolling counters backing the fraud velocity signals. Each counter expires
// with its window, so an idle key costs nothing. The user is tracked on two
// windows because the daily and hourly rules have different thresholds.
func BumpClaimVelocity(ctx context.Context, cmd redis.Cmdable, userID int64, ip string, badgeID int64) error {
	if err := bumpCounter(ctx, cmd, dbKeyClaimVelocityUser(userID), 24*time.Hour); err != nil {
		return err
	}
	if err := bumpCounter(ctx, cmd, dbKeyClaimVelocityUserHour(userID), time.Hour); err != nil {
		return err
	}
	if ip != "" {
		if err := bumpCounter(ctx, cmd, dbKeyClaimVelocityIP(ip), 24*time.Hour); err != nil {
			return err
		}
	}
	return bumpCounter(ctx, cmd, dbKeyClaimVelocityBadge(badgeID), time.Hour)
}

func BumpXPVelocity(ctx context.Context, cmd redis.Cmdable, userID int64, amount int) error {
	err := cmd.IncrBy(ctx, dbKeyXPVelocity(userID), int64(amount)).Err()
	if err != nil {
		return err
	}
	return cmd.Expire(ctx, dbKeyXPVelocity(userID), time.Hour).Err()
}

func GetClaimVelocityUser(ctx context.Context, cmd redis.Cmdable, userID int64) (int, error) {
	return getCounter(ctx, cmd, dbKeyClaimVelocityUser(userID))
}

func GetClaimVelocityUserHour(ctx context.Context, cmd redis.Cmdable, userID int64) (int, error) {
	return getCounter(ctx, cmd, dbKeyClaimVelocityUserHour(userID))
}

func GetClaimVelocityIP(ctx context.Context, cmd redis.Cmdable, ip string) (int, error) {
	if ip == "" {
		return 0, nil
	}
	return getCounter(ctx, cmd, dbKeyClaimVelocityIP(ip))
}

func GetClaimVelocityBadge(ctx context.Context, cmd redis.Cmdable, badgeID int64) (int, error) {
	return getCounter(ctx, cmd, dbKeyClaimVelocityBadge(badgeID))
}

func GetXPVelocity(ctx context.Context, cmd redis.Cmdable, userID int64) (int, error) {
	return getCounter(ctx, cmd, dbKeyXPVelocity(userID))
}

func bumpCounter(ctx context.Context, cmd redis.Cmdable, key string, window time.Duration) error {
	n, err := cmd.Incr(ctx, key).Result()
	if err != nil {
		return err
	}

	// only stamp the TTL when the key is fresh, the window is fixed
	if n == 1 {
		return cmd.Expire(ctx, key, window).Err()
	}
	return nil
}

func getCounter(ctx context.Context, cmd redis.Cmdable, key string) (int, error) {
	v, err := cmd.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}
