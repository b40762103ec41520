package redis_store

import (
	"context"
	"log"
	"strconv"
	"time"

	"inkwell/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

func dbKeyEvaluationQueue() string {
	return "evaluation:queue"
}

func dbKeyEvaluationEvents() string {
	return "evaluation:events"
}

// QueueScore orders events by priority first and arrival second. The
// multiplier leaves room for unix timestamps well past 2100.
func QueueScore(event *models.EvaluationEvent) float64 {
	return float64(event.Type.Priority())*1e12 + float64(event.EnqueuedAt.Unix())
}

// PushEvaluationEvent queues the event's user for evaluation. The zset holds
// one member per user, so a burst of events collapses into a single pending
// sweep; ZADD LT lets a higher-priority event promote an already queued user
// without ever demoting one. The latest event envelope rides in a companion
// hash for the drain loop.
func PushEvaluationEvent(ctx context.Context, cmd redis.Cmdable, event *models.EvaluationEvent) error {
	if event.EnqueuedAt.IsZero() {
		event.EnqueuedAt = time.Now()
	}

	b, err := msgpack.Marshal(event)
	if err != nil {
		return err
	}

	member := strconv.FormatInt(event.UserID, 10)
	err = cmd.ZAddLT(ctx, dbKeyEvaluationQueue(), redis.Z{
		Score:  QueueScore(event),
		Member: member,
	}).Err()
	if err != nil {
		return err
	}

	return cmd.HSet(ctx, dbKeyEvaluationEvents(), member, string(b)).Err()
}

// PopEvaluationBatch removes and returns up to n queued users, highest
// priority first. Members that fail to decode are dropped with a log line so
// one bad entry cannot wedge the queue.
func PopEvaluationBatch(ctx context.Context, cmd redis.Cmdable, n int) ([]*models.EvaluationEvent, error) {
	items, err := cmd.ZPopMin(ctx, dbKeyEvaluationQueue(), int64(n)).Result()
	if err != nil {
		return nil, err
	}

	events := make([]*models.EvaluationEvent, 0, len(items))
	for _, item := range items {
		member, ok := item.Member.(string)
		if !ok {
			continue
		}

		raw, err := cmd.HGet(ctx, dbKeyEvaluationEvents(), member).Result()
		if err == redis.Nil {
			// envelope raced away with a concurrent drain, the member still
			// names the user to sweep
			userID, convErr := strconv.ParseInt(member, 10, 64)
			if convErr != nil {
				continue
			}
			events = append(events, &models.EvaluationEvent{UserID: userID, EnqueuedAt: time.Now()})
			continue
		}
		if err != nil {
			return events, err
		}

		// nolint:errcheck
		cmd.HDel(ctx, dbKeyEvaluationEvents(), member)

		var event models.EvaluationEvent
		if err := msgpack.Unmarshal([]byte(raw), &event); err != nil {
			log.Println("drop undecodable evaluation event:", err)
			continue
		}
		events = append(events, &event)
	}

	return events, nil
}

func EvaluationQueueLen(ctx context.Context, cmd redis.Cmdable) (int64, error) {
	return cmd.ZCard(ctx, dbKeyEvaluationQueue()).Result()
}
