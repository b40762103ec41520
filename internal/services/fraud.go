package services

import (
	"context"
	"log"
	"time"

	"inkwell/internal/datastore"
	"inkwell/internal/datastore/redis_store"
	"inkwell/internal/models"
	"inkwell/internal/pkg"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/uptrace/bun"
)

// Two scoring policies coexist on purpose. PolicyBadgeClaim is the full
// five-signal model run on every claim; PolicyClaimVelocity is the narrower
// velocity-focused check the claim manager runs at initiation time. They
// were tuned independently and are kept as distinct named policies.
const (
	PolicyBadgeClaim    = "badge_claim"
	PolicyClaimVelocity = "claim_velocity"
)

// fraudContext is everything the scoring rules look at, prefetched so the
// rules themselves stay pure and testable.
type fraudContext struct {
	ClaimsByUser24h        int
	ClaimsByUserLastHour   int
	ClaimsByIP24h          int
	ClaimsForBadgeLastHour int
	RejectedClaims7d       int
	XPLastHour             int
	AccountAge             time.Duration
	HasDeviceFingerprint   bool
	CountryMismatch        bool
}

type signalResult struct {
	value float64
	flags []string
}

func behavioralSignal(fc fraudContext) signalResult {
	var r signalResult
	if fc.ClaimsByUser24h > 10 {
		r.value += 0.4
		r.flags = append(r.flags, "excessive_claims")
	}
	if fc.ClaimsByUser24h > 30 {
		r.value += 0.3
		r.flags = append(r.flags, "burst_activity")
	}
	if fc.RejectedClaims7d >= 3 {
		r.value += 0.3
		r.flags = append(r.flags, "recent_rejections")
	}
	r.value = pkg.Clamp01(r.value)
	return r
}

func velocitySignal(fc fraudContext) signalResult {
	var r signalResult
	if fc.ClaimsByUserLastHour > 5 {
		r.value += 0.5
		r.flags = append(r.flags, "rapid_claims")
	}
	if fc.XPLastHour > 1000 {
		r.value += 0.3
		r.flags = append(r.flags, "xp_spike")
	}
	r.value = pkg.Clamp01(r.value)
	return r
}

func patternSignal(fc fraudContext) signalResult {
	var r signalResult
	if fc.ClaimsForBadgeLastHour > 20 {
		r.value += 0.4
		r.flags = append(r.flags, "coordinated_attack")
	}
	if fc.ClaimsByIP24h > 20 {
		r.value += 0.3
		r.flags = append(r.flags, "ip_clustering")
	}
	r.value = pkg.Clamp01(r.value)
	return r
}

func deviceSignal(fc fraudContext) signalResult {
	var r signalResult
	if !fc.HasDeviceFingerprint {
		r.value += 0.4
		r.flags = append(r.flags, "missing_fingerprint")
	}
	if fc.CountryMismatch {
		r.value += 0.3
		r.flags = append(r.flags, "country_mismatch")
	}
	r.value = pkg.Clamp01(r.value)
	return r
}

func accountSignal(fc fraudContext) signalResult {
	var r signalResult
	if fc.AccountAge < 24*time.Hour {
		r.value += 0.4
		r.flags = append(r.flags, "new_account")
	} else if fc.AccountAge < 7*24*time.Hour {
		r.value += 0.2
		r.flags = append(r.flags, "young_account")
	}
	r.value = pkg.Clamp01(r.value)
	return r
}

// scoreBadgeClaim is the PolicyBadgeClaim weighting:
// behavioral 0.30, velocity 0.25, pattern 0.20, device/location 0.15,
// account 0.10.
func scoreBadgeClaim(fc fraudContext) models.FraudCheck {
	behavioral := behavioralSignal(fc)
	velocity := velocitySignal(fc)
	pattern := patternSignal(fc)
	device := deviceSignal(fc)
	account := accountSignal(fc)

	score := pkg.Clamp01(0.30*behavioral.value +
		0.25*velocity.value +
		0.20*pattern.value +
		0.15*device.value +
		0.10*account.value)

	var flags []string
	for _, r := range []signalResult{behavioral, velocity, pattern, device, account} {
		flags = append(flags, r.flags...)
	}

	tier := escalateTier(riskTier(score), flags)
	return models.FraudCheck{
		Score:     score,
		RiskLevel: tier,
		Flags:     flags,
		Signals: map[string]float64{
			"behavioral":      behavioral.value,
			"velocity":        velocity.value,
			"pattern":         pattern.value,
			"device_location": device.value,
			"account":         account.value,
		},
		ManualReviewRequired: tier == models.RiskHigh || tier == models.RiskCritical,
		AutomatedDecision:    tier == models.RiskLow || tier == models.RiskMedium,
	}
}

// scoreClaimVelocity is the PolicyClaimVelocity weighting: claim velocity
// 0.4, xp velocity 0.3, ip clustering 0.2, account age 0.1. It gates manual
// review at claim initiation with its own threshold table.
func scoreClaimVelocity(fc fraudContext) models.FraudCheck {
	var claimVelocity, xpVelocity, ipCluster, account float64
	var flags []string

	if fc.ClaimsByUserLastHour > 5 {
		claimVelocity += 0.6
		flags = append(flags, "rapid_claims")
	}
	if fc.ClaimsByUser24h > 10 {
		claimVelocity += 0.4
		flags = append(flags, "excessive_claims")
	}
	claimVelocity = pkg.Clamp01(claimVelocity)

	if fc.XPLastHour > 1000 {
		xpVelocity = 1
		flags = append(flags, "xp_spike")
	} else if fc.XPLastHour > 500 {
		xpVelocity = 0.5
		flags = append(flags, "xp_elevated")
	}

	if fc.ClaimsByIP24h > 20 {
		ipCluster = 1
		flags = append(flags, "ip_clustering")
	}

	if fc.AccountAge < 24*time.Hour {
		account = 1
		flags = append(flags, "new_account")
	}

	score := pkg.Clamp01(0.4*claimVelocity + 0.3*xpVelocity + 0.2*ipCluster + 0.1*account)

	tier := escalateTier(riskTier(score), flags)
	return models.FraudCheck{
		Score:     score,
		RiskLevel: tier,
		Flags:     flags,
		Signals: map[string]float64{
			"claim_velocity": claimVelocity,
			"xp_velocity":    xpVelocity,
			"ip_clustering":  ipCluster,
			"account":        account,
		},
		ManualReviewRequired: tier == models.RiskHigh || tier == models.RiskCritical,
		AutomatedDecision:    tier == models.RiskLow || tier == models.RiskMedium,
	}
}

var tierRank = map[models.RiskLevel]int{
	models.RiskLow:      0,
	models.RiskMedium:   1,
	models.RiskHigh:     2,
	models.RiskCritical: 3,
}

// escalateTier floors the tier at high when the bright-line abuse rule fired.
// Eleven claims in a day is manual review territory no matter how little the
// weighted score moved.
func escalateTier(tier models.RiskLevel, flags []string) models.RiskLevel {
	for _, flag := range flags {
		if flag == "excessive_claims" && tierRank[tier] < tierRank[models.RiskHigh] {
			return models.RiskHigh
		}
	}
	return tier
}

func riskTier(score float64) models.RiskLevel {
	switch {
	case score < 0.3:
		return models.RiskLow
	case score < 0.6:
		return models.RiskMedium
	case score < 0.8:
		return models.RiskHigh
	default:
		return models.RiskCritical
	}
}

// conservativeOutcome is what a failed prefetch degrades to: medium risk,
// manual review, never silent approval.
func conservativeOutcome() models.FraudCheck {
	return models.FraudCheck{
		Score:                0.5,
		RiskLevel:            models.RiskMedium,
		Flags:                []string{"scoring_degraded"},
		Signals:              map[string]float64{},
		ManualReviewRequired: true,
		AutomatedDecision:    false,
	}
}

type ServiceFraud struct {
	container          *do.Injector
	redisDB            redis.UniversalClient
	readonlyPostgresDB *bun.DB
}

func NewServiceFraud(container *do.Injector) (*ServiceFraud, error) {
	dbRedis, err := do.InvokeNamed[redis.UniversalClient](container, "redis-db")
	if err != nil {
		return nil, err
	}

	readonlyPostgresDB, err := do.InvokeNamed[*bun.DB](container, "db-readonly")
	if err != nil {
		return nil, err
	}

	return &ServiceFraud{container, dbRedis, readonlyPostgresDB}, nil
}

// counterOrDB prefers a rolling redis counter and degrades to a direct db
// count when redis is unavailable. The counters are bumped before scoring and
// so include the claim being scored; the db path adds one to match.
func counterOrDB(fromRedis func() (int, error), fromDB func() (int, error)) (int, error) {
	n, err := fromRedis()
	if err == nil {
		return n, nil
	}
	log.Println("velocity counter degraded to db count:", err)

	n, err = fromDB()
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}

func (service *ServiceFraud) buildContext(ctx context.Context, badge *models.Badge, user *models.User, security *models.ClaimSecurity) (fraudContext, error) {
	now := time.Now()
	fc := fraudContext{
		AccountAge:           now.Sub(user.CreatedAt),
		HasDeviceFingerprint: security != nil && security.DeviceFingerprint != "",
	}
	if security != nil && security.Country != "" && user.Country != "" {
		fc.CountryMismatch = security.Country != user.Country
	}

	var err error
	fc.ClaimsByUser24h, err = counterOrDB(
		func() (int, error) {
			return redis_store.GetClaimVelocityUser(ctx, service.redisDB, user.ID)
		},
		func() (int, error) {
			return datastore.CountClaimsByUserSince(ctx, service.readonlyPostgresDB, user.ID, now.Add(-24*time.Hour))
		},
	)
	if err != nil {
		return fc, err
	}

	fc.ClaimsByUserLastHour, err = counterOrDB(
		func() (int, error) {
			return redis_store.GetClaimVelocityUserHour(ctx, service.redisDB, user.ID)
		},
		func() (int, error) {
			return datastore.CountClaimsByUserSince(ctx, service.readonlyPostgresDB, user.ID, now.Add(-time.Hour))
		},
	)
	if err != nil {
		return fc, err
	}

	fc.RejectedClaims7d, err = datastore.CountRejectedClaimsByUserSince(ctx, service.readonlyPostgresDB, user.ID, now.Add(-7*24*time.Hour))
	if err != nil {
		return fc, err
	}

	if security != nil && security.IP != "" {
		ip := security.IP
		fc.ClaimsByIP24h, err = counterOrDB(
			func() (int, error) {
				return redis_store.GetClaimVelocityIP(ctx, service.redisDB, ip)
			},
			func() (int, error) {
				return datastore.CountClaimsByIPSince(ctx, service.readonlyPostgresDB, ip, now.Add(-24*time.Hour))
			},
		)
		if err != nil {
			return fc, err
		}
	}

	fc.ClaimsForBadgeLastHour, err = counterOrDB(
		func() (int, error) {
			return redis_store.GetClaimVelocityBadge(ctx, service.redisDB, badge.ID)
		},
		func() (int, error) {
			return datastore.CountClaimsForBadgeSince(ctx, service.readonlyPostgresDB, badge.ID, now.Add(-time.Hour))
		},
	)
	if err != nil {
		return fc, err
	}

	fc.XPLastHour, err = redis_store.GetXPVelocity(ctx, service.redisDB, user.ID)
	if err != nil {
		return fc, err
	}

	return fc, nil
}

// ScoreClaim runs PolicyBadgeClaim against fresh signal data. Prefetch
// errors degrade to the conservative outcome instead of failing the claim.
func (service *ServiceFraud) ScoreClaim(ctx context.Context, badge *models.Badge, user *models.User, security *models.ClaimSecurity) models.FraudCheck {
	fc, err := service.buildContext(ctx, badge, user, security)
	if err != nil {
		log.Println("fraud prefetch degraded:", err)
		return conservativeOutcome()
	}

	return scoreBadgeClaim(fc)
}

// ScoreInitiation runs PolicyClaimVelocity, the lighter gate the claim
// manager consults before accepting a new claim.
func (service *ServiceFraud) ScoreInitiation(ctx context.Context, badge *models.Badge, user *models.User, security *models.ClaimSecurity) models.FraudCheck {
	fc, err := service.buildContext(ctx, badge, user, security)
	if err != nil {
		log.Println("fraud prefetch degraded:", err)
		return conservativeOutcome()
	}

	return scoreClaimVelocity(fc)
}

// RecordClaimAttempt bumps the rolling velocity counters after a claim is
// accepted into the pipeline.
func (service *ServiceFraud) RecordClaimAttempt(ctx context.Context, badgeID int64, userID int64, ip string) {
	if err := redis_store.BumpClaimVelocity(ctx, service.redisDB, userID, ip, badgeID); err != nil {
		log.Println("bump claim velocity:", err)
	}
}

func (service *ServiceFraud) RecordXPAward(ctx context.Context, userID int64, amount int) {
	if err := redis_store.BumpXPVelocity(ctx, service.redisDB, userID, amount); err != nil {
		log.Println("bump xp velocity:", err)
	}
}
