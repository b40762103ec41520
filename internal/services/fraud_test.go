package services

import (
	"testing"
	"time"

	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
)

func cleanContext() fraudContext {
	return fraudContext{
		AccountAge:           30 * 24 * time.Hour,
		HasDeviceFingerprint: true,
	}
}

func TestScoreBadgeClaimCleanUser(t *testing.T) {
	check := scoreBadgeClaim(cleanContext())

	assert.Equal(t, float64(0), check.Score)
	assert.Equal(t, models.RiskLow, check.RiskLevel)
	assert.Empty(t, check.Flags)
	assert.False(t, check.ManualReviewRequired)
	assert.True(t, check.AutomatedDecision)
}

func TestScoreBadgeClaimExcessiveClaims(t *testing.T) {
	fc := cleanContext()
	fc.ClaimsByUser24h = 11

	check := scoreBadgeClaim(fc)

	assert.Contains(t, check.Flags, "excessive_claims")
	assert.NotContains(t, check.Flags, "burst_activity")
	assert.InDelta(t, 0.30*0.4, check.Score, 1e-9)
	// the bright-line rule escalates past what the weighted score alone says
	assert.Equal(t, models.RiskHigh, check.RiskLevel)
	assert.True(t, check.ManualReviewRequired)
	assert.False(t, check.AutomatedDecision)
}

func TestEleventhClaimInDayForcesReview(t *testing.T) {
	fc := cleanContext()
	fc.ClaimsByUser24h = 11

	for _, check := range []models.FraudCheck{scoreBadgeClaim(fc), scoreClaimVelocity(fc)} {
		assert.Contains(t, check.Flags, "excessive_claims")
		assert.Contains(t, []models.RiskLevel{models.RiskHigh, models.RiskCritical}, check.RiskLevel)
		assert.True(t, check.ManualReviewRequired)
		// daily volume alone must not masquerade as hourly velocity
		assert.NotContains(t, check.Flags, "rapid_claims")
	}

	// the tenth claim of the day stays below the line
	fc.ClaimsByUser24h = 10
	assert.False(t, scoreBadgeClaim(fc).ManualReviewRequired)
	assert.False(t, scoreClaimVelocity(fc).ManualReviewRequired)
}

func TestEscalateTier(t *testing.T) {
	assert.Equal(t, models.RiskHigh, escalateTier(models.RiskLow, []string{"excessive_claims"}))
	assert.Equal(t, models.RiskHigh, escalateTier(models.RiskMedium, []string{"new_account", "excessive_claims"}))
	assert.Equal(t, models.RiskCritical, escalateTier(models.RiskCritical, []string{"excessive_claims"}))
	assert.Equal(t, models.RiskLow, escalateTier(models.RiskLow, []string{"new_account"}))
}

func TestScoreBadgeClaimWeights(t *testing.T) {
	fc := fraudContext{
		ClaimsByUser24h:        31,
		ClaimsByUserLastHour:   6,
		ClaimsByIP24h:          21,
		ClaimsForBadgeLastHour: 21,
		RejectedClaims7d:       3,
		XPLastHour:             1001,
		AccountAge:             time.Hour,
		HasDeviceFingerprint:   false,
		CountryMismatch:        true,
	}

	check := scoreBadgeClaim(fc)

	// 0.30*1.0 + 0.25*0.8 + 0.20*0.7 + 0.15*0.7 + 0.10*0.4
	assert.InDelta(t, 0.785, check.Score, 1e-9)
	assert.Equal(t, models.RiskHigh, check.RiskLevel)
	assert.True(t, check.ManualReviewRequired)
	assert.Equal(t, float64(1), check.Signals["behavioral"])
	assert.Equal(t, float64(0.8), check.Signals["velocity"])
	assert.Equal(t, float64(0.7), check.Signals["pattern"])
	assert.Equal(t, float64(0.7), check.Signals["device_location"])
	assert.Equal(t, float64(0.4), check.Signals["account"])
}

func TestScoreBadgeClaimMonotonic(t *testing.T) {
	fc := cleanContext()
	prev := scoreBadgeClaim(fc).Score

	fc.ClaimsByUser24h = 11
	next := scoreBadgeClaim(fc).Score
	assert.Greater(t, next, prev)

	fc.RejectedClaims7d = 3
	assert.Greater(t, scoreBadgeClaim(fc).Score, next)
}

func TestScoreClaimVelocity(t *testing.T) {
	fc := cleanContext()
	fc.ClaimsByUserLastHour = 6
	fc.XPLastHour = 600

	check := scoreClaimVelocity(fc)

	assert.Contains(t, check.Flags, "rapid_claims")
	assert.Contains(t, check.Flags, "xp_elevated")
	assert.InDelta(t, 0.4*0.6+0.3*0.5, check.Score, 1e-9)
	assert.Equal(t, float64(0.5), check.Signals["xp_velocity"])
}

func TestScoreClaimVelocitySaturated(t *testing.T) {
	fc := fraudContext{
		ClaimsByUser24h:      11,
		ClaimsByUserLastHour: 6,
		ClaimsByIP24h:        21,
		XPLastHour:           1500,
		AccountAge:           time.Hour,
	}

	check := scoreClaimVelocity(fc)

	assert.InDelta(t, 1.0, check.Score, 1e-9)
	assert.Equal(t, models.RiskCritical, check.RiskLevel)
	assert.True(t, check.ManualReviewRequired)
}

func TestRiskTierBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		tier  models.RiskLevel
	}{
		{0, models.RiskLow},
		{0.29, models.RiskLow},
		{0.3, models.RiskMedium},
		{0.59, models.RiskMedium},
		{0.6, models.RiskHigh},
		{0.79, models.RiskHigh},
		{0.8, models.RiskCritical},
		{1, models.RiskCritical},
	}

	for _, c := range cases {
		assert.Equal(t, c.tier, riskTier(c.score), "score %v", c.score)
	}
}

func TestConservativeOutcome(t *testing.T) {
	check := conservativeOutcome()

	assert.Equal(t, 0.5, check.Score)
	assert.Equal(t, models.RiskMedium, check.RiskLevel)
	assert.Contains(t, check.Flags, "scoring_degraded")
	assert.True(t, check.ManualReviewRequired)
	assert.False(t, check.AutomatedDecision)
}

func TestAccountSignalAges(t *testing.T) {
	fc := cleanContext()

	fc.AccountAge = 12 * time.Hour
	r := accountSignal(fc)
	assert.Contains(t, r.flags, "new_account")
	assert.Equal(t, 0.4, r.value)

	fc.AccountAge = 3 * 24 * time.Hour
	r = accountSignal(fc)
	assert.Contains(t, r.flags, "young_account")
	assert.Equal(t, 0.2, r.value)

	fc.AccountAge = 30 * 24 * time.Hour
	r = accountSignal(fc)
	assert.Empty(t, r.flags)
	assert.Equal(t, float64(0), r.value)
}
