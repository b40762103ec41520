package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"inkwell/internal/datastore"
	"inkwell/internal/interfaces"
	"inkwell/internal/models"
	"inkwell/internal/pkg/caching"

	"github.com/go-redis/redis_rate/v10"
	"github.com/go-redsync/redsync/v4"
	"github.com/google/uuid"
	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const ActorSystem = "system"

// claimTransitions is the full state machine. Terminal states have no
// outgoing edges; cancellation is user initiated and allowed from any
// unresolved state.
var claimTransitions = map[models.ClaimStatus][]models.ClaimStatus{
	models.ClaimStatusPending: {
		models.ClaimStatusUnderReview,
		models.ClaimStatusApproved,
		models.ClaimStatusRejected,
		models.ClaimStatusCancelled,
	},
	models.ClaimStatusUnderReview: {
		models.ClaimStatusApproved,
		models.ClaimStatusRejected,
		models.ClaimStatusCancelled,
	},
	models.ClaimStatusApproved: {
		models.ClaimStatusRejected,
		models.ClaimStatusCancelled,
	},
}

func transitionAllowed(from, to models.ClaimStatus) bool {
	for _, next := range claimTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// signClaim produces the tamper-evident signature stored on every claim:
// HMAC-SHA256(badgeID|userID|claimedAt) under the claim secret, hex encoded.
func signClaim(secret string, badgeID int64, userID int64, claimedAt time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d|%d|%d", badgeID, userID, claimedAt.UnixNano())
	return hex.EncodeToString(mac.Sum(nil))
}

type ServiceClaim struct {
	container          *do.Injector
	redisDB            redis.UniversalClient
	rs                 *redsync.Redsync
	postgresDB         *bun.DB
	readonlyPostgresDB *bun.DB
	cache              caching.Cache
	limiter            interfaces.Limiter
	notifier           interfaces.Notifier

	serviceUser        *ServiceUser
	serviceBadge       *ServiceBadge
	serviceEligibility *ServiceEligibility
	serviceFraud       *ServiceFraud
	serviceConfig      *ServiceConfig

	secret string
}

func NewServiceClaim(container *do.Injector) (*ServiceClaim, error) {
	dbRedis, err := do.InvokeNamed[redis.UniversalClient](container, "redis-db")
	if err != nil {
		return nil, err
	}

	rs, err := do.Invoke[*redsync.Redsync](container)
	if err != nil {
		return nil, err
	}

	postgresDB, err := do.Invoke[*bun.DB](container)
	if err != nil {
		return nil, err
	}

	readonlyPostgresDB, err := do.InvokeNamed[*bun.DB](container, "db-readonly")
	if err != nil {
		return nil, err
	}

	cache, err := do.Invoke[caching.Cache](container)
	if err != nil {
		return nil, err
	}

	limiter, err := do.Invoke[interfaces.Limiter](container)
	if err != nil {
		return nil, err
	}

	notifier, err := do.Invoke[interfaces.Notifier](container)
	if err != nil {
		return nil, err
	}

	serviceUser, err := do.Invoke[*ServiceUser](container)
	if err != nil {
		return nil, err
	}

	serviceBadge, err := do.Invoke[*ServiceBadge](container)
	if err != nil {
		return nil, err
	}

	serviceEligibility, err := do.Invoke[*ServiceEligibility](container)
	if err != nil {
		return nil, err
	}

	serviceFraud, err := do.Invoke[*ServiceFraud](container)
	if err != nil {
		return nil, err
	}

	serviceConfig, err := do.Invoke[*ServiceConfig](container)
	if err != nil {
		return nil, err
	}

	vs := do.MustInvokeNamed[map[string]string](container, "envs")

	return &ServiceClaim{
		container:          container,
		redisDB:            dbRedis,
		rs:                 rs,
		postgresDB:         postgresDB,
		readonlyPostgresDB: readonlyPostgresDB,
		cache:              cache,
		limiter:            limiter,
		notifier:           notifier,
		serviceUser:        serviceUser,
		serviceBadge:       serviceBadge,
		serviceEligibility: serviceEligibility,
		serviceFraud:       serviceFraud,
		serviceConfig:      serviceConfig,
		secret:             vs["CLAIM_SECRET"],
	}, nil
}

// InitiateClaim runs the whole front half of the lifecycle: rate limit,
// per-(badge,user) lock, duplicate and governance checks, eligibility,
// fraud scoring, then either auto approval or manual review. Actor is the
// audit identity, ActorSystem for batch auto-claims.
func (service *ServiceClaim) InitiateClaim(ctx context.Context, badgeID int64, user *models.User, security models.ClaimSecurity, actor string) (*models.BadgeClaim, error) {
	badge, err := service.serviceBadge.GetBadge(ctx, badgeID)
	if err != nil {
		return nil, err
	}

	if actor != ActorSystem {
		perHour, _ := service.serviceConfig.GetIntConfig(ctx, CONFIG_CLAIMS_PER_HOUR, DEFAULT_CLAIMS_PER_HOUR)
		if err := service.limiter.Allow(ctx, LimitKeyClaim(user.ID), redis_rate.Limit{
			Rate:   perHour,
			Period: CLAIM_RATE_WINDOW,
			Burst:  perHour,
		}); err != nil {
			return nil, errorx.Wrap(ErrClaimRateLimited, errorx.RateLimiting)
		}
	}

	mutex := service.rs.NewMutex(LockKeyClaim(badgeID, user.ID))
	if err := mutex.TryLock(); err != nil {
		return nil, errorx.Wrap(ErrClaimLock, errorx.Invalid)
	}

	// nolint:errcheck
	defer mutex.Unlock()

	// duplicate check hits the write db, replica lag would defeat it
	existing, err := datastore.FindUnresolvedClaim(ctx, service.postgresDB, badgeID, user.ID)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if existing != nil {
		return nil, errorx.Wrap(ErrDuplicateClaim, errorx.Invalid)
	}

	if err := service.checkGovernance(ctx, badge, user); err != nil {
		return nil, err
	}

	if !badge.Active() || !badge.AvailableFor(user, time.Now()) {
		return nil, errorx.Wrap(ErrBadgeUnavailable, errorx.Invalid)
	}

	eligible, err := service.serviceEligibility.IsEligible(ctx, user, badge)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, errorx.Wrap(ErrNotEligible, errorx.Invalid)
	}

	_, confidence, err := service.serviceEligibility.Progress(ctx, user, badge)
	if err != nil {
		confidence = 1
	}

	service.serviceBadge.RecordAttempt(ctx, badgeID)
	service.serviceFraud.RecordClaimAttempt(ctx, badgeID, user.ID, security.IP)

	now := time.Now()
	security.Signature = signClaim(service.secret, badgeID, user.ID, now)

	claim := &models.BadgeClaim{
		ID:          uuid.NewString(),
		BadgeID:     badgeID,
		UserID:      user.ID,
		Status:      models.ClaimStatusPending,
		Eligibility: models.EligibilityCheck{Passed: true, Confidence: confidence},
		Security:    security,
		RateWindow: models.RateWindow{
			WindowStart: now,
			WindowEnd:   now.Add(CLAIM_RATE_WINDOW),
			Attempts:    1,
		},
		ClaimedAt: now,
		UpdatedAt: now,
	}
	claim.Audit("initiated", actor, "")

	gate := service.serviceFraud.ScoreInitiation(ctx, badge, user, &security)
	full := service.serviceFraud.ScoreClaim(ctx, badge, user, &security)
	claim.Fraud = full

	review := full.ManualReviewRequired || gate.ManualReviewRequired ||
		badge.Governance.RequireManualReview

	// badges without their own threshold fall back to the platform default
	threshold := badge.Governance.FraudThreshold
	if threshold <= 0 {
		threshold, _ = service.serviceConfig.GetFloatConfig(ctx, CONFIG_FRAUD_THRESHOLD_DEFAULT, DEFAULT_FRAUD_THRESHOLD)
	}
	if threshold > 0 && full.Score >= threshold {
		review = true
	}

	if review {
		claim.Status = models.ClaimStatusUnderReview
		claim.Audit("queued_review", ActorSystem, fmt.Sprintf("risk=%s score=%.2f", full.RiskLevel, full.Score))
	} else {
		claim.Status = models.ClaimStatusApproved
		claim.Audit("auto_approved", ActorSystem, fmt.Sprintf("risk=%s score=%.2f", full.RiskLevel, full.Score))
	}

	claim, err = datastore.InsertClaim(ctx, service.postgresDB, claim)
	if err != nil {
		// the partial unique index backs up the lock
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.Field('C') == "23505" {
			return nil, errorx.Wrap(ErrDuplicateClaim, errorx.Invalid)
		}
		return nil, err
	}

	if claim.Status == models.ClaimStatusApproved {
		if err := service.ProcessApproved(ctx, claim); err != nil {
			return claim, err
		}
	}

	return claim, nil
}

func (service *ServiceClaim) checkGovernance(ctx context.Context, badge *models.Badge, user *models.User) error {
	if badge.Governance.MaxClaimsPerUser > 0 {
		n, err := datastore.CountApprovedClaims(ctx, service.postgresDB, badge.ID, user.ID)
		if err != nil {
			return err
		}
		if n >= badge.Governance.MaxClaimsPerUser {
			return errorx.Wrap(errors.New("max claims reached for this badge"), errorx.Invalid)
		}
	}

	if badge.Governance.CooldownHours > 0 {
		latest, err := datastore.FindLatestClaim(ctx, service.postgresDB, badge.ID, user.ID)
		if err != nil && err != sql.ErrNoRows {
			return err
		}
		if latest != nil {
			cooldown := time.Duration(badge.Governance.CooldownHours) * time.Hour
			if time.Since(latest.ClaimedAt) < cooldown {
				return errorx.Wrap(errors.New("badge is cooling down"), errorx.Invalid)
			}
		}
	}

	return nil
}

var errRewardsAlreadyApplied = errors.New("rewards already applied")

// ProcessApproved applies the rewards exactly once: badge set, xp, level and
// the applied_at stamp move in one transaction. A re-run on an already
// rewarded claim is a no-op. A failed application rolls the claim back to
// rejected instead of leaving it approved without rewards.
func (service *ServiceClaim) ProcessApproved(ctx context.Context, claim *models.BadgeClaim) error {
	if claim.Rewards.AppliedAt != nil {
		return nil
	}
	if claim.Status != models.ClaimStatusApproved {
		return errorx.Wrap(errors.New("claim is not approved"), errorx.Invalid)
	}

	mutex := service.rs.NewMutex(LockKeyClaimProcess(claim.ID))
	if err := mutex.TryLock(); err != nil {
		return errorx.Wrap(ErrClaimLock, errorx.Invalid)
	}

	// nolint:errcheck
	defer mutex.Unlock()

	badge, err := service.serviceBadge.GetBadge(ctx, claim.BadgeID)
	if err != nil {
		return err
	}

	err = service.postgresDB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		user, err := datastore.FindUserByID(ctx, tx, claim.UserID)
		if err != nil {
			return err
		}

		user.GrantBadge(badge.ID)
		user.XP += badge.Rewards.XP
		user.Level = models.LevelForXP(user.XP)
		user.UpdatedAt = time.Now()

		if err := datastore.UpdateUserRewards(ctx, tx, user); err != nil {
			return err
		}

		now := time.Now()
		claim.Rewards = models.ClaimRewards{XPAwarded: badge.Rewards.XP, AppliedAt: &now}
		claim.Audit("rewards_applied", ActorSystem, fmt.Sprintf("xp=%d", badge.Rewards.XP))

		applied, err := datastore.ApplyClaimRewards(ctx, tx, claim)
		if err != nil {
			return err
		}
		if !applied {
			return errRewardsAlreadyApplied
		}
		return nil
	})

	if errors.Is(err, errRewardsAlreadyApplied) {
		// another invocation won the race, nothing to undo
		return nil
	}
	if err != nil {
		service.rollbackToRejected(ctx, claim, err)
		return err
	}

	service.serviceBadge.RecordEarned(ctx, claim.BadgeID)
	service.serviceFraud.RecordXPAward(ctx, claim.UserID, badge.Rewards.XP)
	service.serviceUser.ClearUserCache(ctx, claim.UserID)
	service.serviceEligibility.InvalidateUser(ctx, claim.UserID)

	go func() {
		err := service.notifier.Notify(context.Background(), claim.UserID, "badge_earned", map[string]any{
			"badge_id":  badge.ID,
			"badge_key": badge.Key,
			"claim_id":  claim.ID,
			"xp":        badge.Rewards.XP,
		})
		if err != nil {
			log.Println("notify badge_earned:", err)
		}
	}()

	return nil
}

func (service *ServiceClaim) rollbackToRejected(ctx context.Context, claim *models.BadgeClaim, cause error) {
	claim.Status = models.ClaimStatusRejected
	claim.Rewards = models.ClaimRewards{}
	claim.Audit("rejected", ActorSystem, fmt.Sprintf("processing error: %v", cause))

	if _, err := datastore.UpdateClaim(ctx, service.postgresDB, claim); err != nil {
		log.Println("rollback claim:", "claim:", claim.ID, err)
	}
}

// Review is the administrator decision on an under_review (or pending)
// claim. Approval flows into ProcessApproved; rejection records the reviewer
// and notes and never touches rewards.
func (service *ServiceClaim) Review(ctx context.Context, claimID string, approve bool, reviewer string, notes string) (*models.BadgeClaim, error) {
	claim, err := service.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	target := models.ClaimStatusRejected
	if approve {
		target = models.ClaimStatusApproved
	}

	if !transitionAllowed(claim.Status, target) {
		return nil, errorx.Wrap(fmt.Errorf("cannot move claim from %s to %s", claim.Status, target), errorx.Invalid)
	}

	claim.Status = target
	if approve {
		claim.Audit("approved", reviewer, notes)
	} else {
		claim.Audit("rejected", reviewer, notes)
	}

	claim, err = datastore.UpdateClaim(ctx, service.postgresDB, claim)
	if err != nil {
		return nil, err
	}

	if approve {
		if err := service.ProcessApproved(ctx, claim); err != nil {
			return claim, err
		}
	}

	return claim, nil
}

// Cancel is user initiated and allowed from any unresolved state. Rewards
// already applied stay applied; cancellation is not a refund.
func (service *ServiceClaim) Cancel(ctx context.Context, claimID string, userID int64) (*models.BadgeClaim, error) {
	claim, err := service.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	if claim.UserID != userID {
		return nil, errorx.Wrap(errors.New("claim belongs to another user"), errorx.Invalid)
	}

	if !transitionAllowed(claim.Status, models.ClaimStatusCancelled) {
		return nil, errorx.Wrap(fmt.Errorf("cannot cancel a %s claim", claim.Status), errorx.Invalid)
	}

	claim.Status = models.ClaimStatusCancelled
	claim.Audit("cancelled", fmt.Sprintf("user:%d", userID), "")

	return datastore.UpdateClaim(ctx, service.postgresDB, claim)
}

// SubmitAppeal attaches an appeal to a rejected claim. Appeals annotate the
// record for a human; they do not reopen the state machine.
func (service *ServiceClaim) SubmitAppeal(ctx context.Context, claimID string, userID int64, reason string) (*models.BadgeClaim, error) {
	claim, err := service.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	if claim.UserID != userID {
		return nil, errorx.Wrap(errors.New("claim belongs to another user"), errorx.Invalid)
	}
	if claim.Status != models.ClaimStatusRejected {
		return nil, errorx.Wrap(errors.New("only rejected claims can be appealed"), errorx.Invalid)
	}
	if claim.Appeal != nil {
		return nil, errorx.Wrap(errors.New("claim already has an appeal"), errorx.Invalid)
	}

	claim.Appeal = &models.ClaimAppeal{
		Reason:      reason,
		SubmittedAt: time.Now(),
	}
	claim.Audit("appeal_submitted", fmt.Sprintf("user:%d", userID), reason)

	return datastore.UpdateClaim(ctx, service.postgresDB, claim)
}

func (service *ServiceClaim) ResolveAppeal(ctx context.Context, claimID string, reviewer string, outcome string) (*models.BadgeClaim, error) {
	claim, err := service.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	if claim.Appeal == nil {
		return nil, errorx.Wrap(errors.New("claim has no appeal"), errorx.NotExist)
	}
	if claim.Appeal.ResolvedAt != nil {
		return nil, errorx.Wrap(errors.New("appeal already resolved"), errorx.Invalid)
	}

	now := time.Now()
	claim.Appeal.ResolvedAt = &now
	claim.Appeal.Outcome = outcome
	claim.Audit("appeal_resolved", reviewer, outcome)

	return datastore.UpdateClaim(ctx, service.postgresDB, claim)
}

func (service *ServiceClaim) GetClaim(ctx context.Context, claimID string) (*models.BadgeClaim, error) {
	claim, err := datastore.FindClaimByID(ctx, service.postgresDB, claimID)
	if err == sql.ErrNoRows {
		return nil, errorx.Wrap(errors.New("claim not found"), errorx.NotExist)
	}
	return claim, err
}

func (service *ServiceClaim) ListUserClaims(ctx context.Context, userID int64, limit int, offset int) ([]*models.BadgeClaim, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return datastore.ListClaimsByUser(ctx, service.readonlyPostgresDB, userID, limit, offset)
}

func (service *ServiceClaim) ListClaimsForReview(ctx context.Context, limit int, offset int) ([]*models.BadgeClaim, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return datastore.ListClaimsByStatus(ctx, service.readonlyPostgresDB, models.ClaimStatusUnderReview, limit, offset)
}

// VerifySignature recomputes the claim signature and compares in constant
// time, for audit tooling.
func (service *ServiceClaim) VerifySignature(claim *models.BadgeClaim) bool {
	want := signClaim(service.secret, claim.BadgeID, claim.UserID, claim.ClaimedAt)
	return hmac.Equal([]byte(want), []byte(claim.Security.Signature))
}
