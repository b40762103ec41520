package models

import "time"

type EventType string

const (
	EventLogin       EventType = "login"
	EventBlogPublish EventType = "blog_publish"
	EventComment     EventType = "comment"
	EventLike        EventType = "like"
	EventFollow      EventType = "follow"
	EventXPEarned    EventType = "xp_earned"
)

// Priority orders queued evaluations; lower drains first. Unknown types sink
// to the back of the queue instead of being dropped.
func (t EventType) Priority() int {
	switch t {
	case EventLogin:
		return 1
	case EventBlogPublish:
		return 2
	case EventComment:
		return 3
	case EventLike:
		return 4
	case EventFollow:
		return 5
	case EventXPEarned:
		return 6
	default:
		return 10
	}
}

// EvaluationEvent is one queued trigger for async badge evaluation. It lives
// in redis, not postgres, and is serialized with msgpack.
type EvaluationEvent struct {
	ID         string         `msgpack:"id" json:"id"`
	Type       EventType      `msgpack:"type" json:"type"`
	UserID     int64          `msgpack:"user_id" json:"user_id"`
	Payload    map[string]any `msgpack:"payload,omitempty" json:"payload,omitempty"`
	EnqueuedAt time.Time      `msgpack:"enqueued_at" json:"enqueued_at"`
}
