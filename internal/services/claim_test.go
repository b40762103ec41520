package services

import (
	"context"
	"testing"
	"time"

	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestTransitionAllowed(t *testing.T) {
	cases := []struct {
		from    models.ClaimStatus
		to      models.ClaimStatus
		allowed bool
	}{
		{models.ClaimStatusPending, models.ClaimStatusUnderReview, true},
		{models.ClaimStatusPending, models.ClaimStatusApproved, true},
		{models.ClaimStatusPending, models.ClaimStatusRejected, true},
		{models.ClaimStatusPending, models.ClaimStatusCancelled, true},
		{models.ClaimStatusUnderReview, models.ClaimStatusApproved, true},
		{models.ClaimStatusUnderReview, models.ClaimStatusRejected, true},
		{models.ClaimStatusUnderReview, models.ClaimStatusCancelled, true},
		{models.ClaimStatusApproved, models.ClaimStatusCancelled, true},
		{models.ClaimStatusApproved, models.ClaimStatusRejected, true},
		{models.ClaimStatusApproved, models.ClaimStatusPending, false},
		{models.ClaimStatusRejected, models.ClaimStatusApproved, false},
		{models.ClaimStatusRejected, models.ClaimStatusCancelled, false},
		{models.ClaimStatusCancelled, models.ClaimStatusApproved, false},
		{models.ClaimStatusUnderReview, models.ClaimStatusPending, false},
	}

	for _, c := range cases {
		assert.Equal(t, c.allowed, transitionAllowed(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestSignClaimDeterministic(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := signClaim("secret", 7, 42, at)
	second := signClaim("secret", 7, 42, at)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)

	assert.NotEqual(t, first, signClaim("other", 7, 42, at))
	assert.NotEqual(t, first, signClaim("secret", 8, 42, at))
	assert.NotEqual(t, first, signClaim("secret", 7, 43, at))
	assert.NotEqual(t, first, signClaim("secret", 7, 42, at.Add(time.Nanosecond)))
}

func TestProcessApprovedAlreadyApplied(t *testing.T) {
	service := &ServiceClaim{}
	now := time.Now()

	claim := &models.BadgeClaim{
		ID:      "claim-1",
		Status:  models.ClaimStatusApproved,
		Rewards: models.ClaimRewards{XPAwarded: 50, AppliedAt: &now},
	}

	// a rewarded claim short-circuits before touching any dependency
	assert.NoError(t, service.ProcessApproved(context.Background(), claim))
	assert.Equal(t, 50, claim.Rewards.XPAwarded)
}

func TestProcessApprovedRejectsWrongStatus(t *testing.T) {
	service := &ServiceClaim{}

	claim := &models.BadgeClaim{ID: "claim-2", Status: models.ClaimStatusPending}
	assert.Error(t, service.ProcessApproved(context.Background(), claim))
	assert.Nil(t, claim.Rewards.AppliedAt)
}

func TestTerminalStatuses(t *testing.T) {
	assert.False(t, models.ClaimStatusPending.Terminal())
	assert.False(t, models.ClaimStatusUnderReview.Terminal())
	assert.False(t, models.ClaimStatusApproved.Terminal())
	assert.True(t, models.ClaimStatusRejected.Terminal())
	assert.True(t, models.ClaimStatusCancelled.Terminal())
}
