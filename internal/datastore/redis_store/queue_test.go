package redis_store

import (
	"testing"
	"time"

	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestEventPriorities(t *testing.T) {
	assert.Equal(t, 1, models.EventLogin.Priority())
	assert.Equal(t, 2, models.EventBlogPublish.Priority())
	assert.Equal(t, 3, models.EventComment.Priority())
	assert.Equal(t, 4, models.EventLike.Priority())
	assert.Equal(t, 5, models.EventFollow.Priority())
	assert.Equal(t, 6, models.EventXPEarned.Priority())
	assert.Equal(t, 10, models.EventType("mystery").Priority())
}

func TestQueueScoreOrdering(t *testing.T) {
	now := time.Now()

	login := &models.EvaluationEvent{Type: models.EventLogin, EnqueuedAt: now}
	follow := &models.EvaluationEvent{Type: models.EventFollow, EnqueuedAt: now}

	// higher priority drains first regardless of arrival
	assert.Less(t, QueueScore(login), QueueScore(follow))

	lateLogin := &models.EvaluationEvent{Type: models.EventLogin, EnqueuedAt: now.Add(365 * 24 * time.Hour)}
	assert.Less(t, QueueScore(lateLogin), QueueScore(follow))

	// within a priority, earlier arrival drains first
	earlier := &models.EvaluationEvent{Type: models.EventLike, EnqueuedAt: now}
	later := &models.EvaluationEvent{Type: models.EventLike, EnqueuedAt: now.Add(time.Second)}
	assert.Less(t, QueueScore(earlier), QueueScore(later))
}
