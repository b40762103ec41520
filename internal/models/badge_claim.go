package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ClaimStatus string

const (
	ClaimStatusPending     ClaimStatus = "pending"
	ClaimStatusUnderReview ClaimStatus = "under_review"
	ClaimStatusApproved    ClaimStatus = "approved"
	ClaimStatusRejected    ClaimStatus = "rejected"
	ClaimStatusCancelled   ClaimStatus = "cancelled"
)

// Terminal reports whether the claim can never change state again. Approved
// is not terminal; the unresolved set for the duplicate check is {pending,
// under_review, approved} per the single-claim invariant.
func (s ClaimStatus) Terminal() bool {
	return s == ClaimStatusRejected || s == ClaimStatusCancelled
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

type EligibilityCheck struct {
	Passed     bool    `json:"passed"`
	Confidence float64 `json:"confidence"`
}

type FraudCheck struct {
	Score                float64            `json:"score"`
	RiskLevel            RiskLevel          `json:"risk_level"`
	Flags                []string           `json:"flags,omitempty"`
	Signals              map[string]float64 `json:"signals,omitempty"`
	ManualReviewRequired bool               `json:"manual_review_required"`
	AutomatedDecision    bool               `json:"automated_decision"`
}

type ClaimSecurity struct {
	IP                string `json:"ip,omitempty"`
	UserAgent         string `json:"user_agent,omitempty"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
	Country           string `json:"country,omitempty"`
	SessionID         string `json:"session_id,omitempty"`
	// Signature is HMAC-SHA256(badgeID|userID|claimedAt) under the claim
	// secret, hex encoded. It makes stored claims tamper evident.
	Signature string `json:"signature"`
}

type RateWindow struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Attempts    int       `json:"attempts"`
}

type ClaimRewards struct {
	XPAwarded int        `json:"xp_awarded"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

type AuditEntry struct {
	Action string    `json:"action"`
	Actor  string    `json:"actor"`
	At     time.Time `json:"at"`
	Detail string    `json:"detail,omitempty"`
}

type ClaimAppeal struct {
	Reason      string     `json:"reason"`
	SubmittedAt time.Time  `json:"submitted_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	Outcome     string     `json:"outcome,omitempty"`
}

type BadgeClaim struct {
	bun.BaseModel `bun:"table:badge_claim"`
	ID            string           `bun:"id,pk" json:"id"`
	BadgeID       int64            `bun:"badge_id" json:"badge_id"`
	UserID        int64            `bun:"user_id" json:"user_id"`
	Status        ClaimStatus      `bun:"status" json:"status"`
	Eligibility   EligibilityCheck `bun:"eligibility,type:jsonb" json:"eligibility"`
	Fraud         FraudCheck       `bun:"fraud,type:jsonb" json:"fraud"`
	Security      ClaimSecurity    `bun:"security,type:jsonb" json:"security"`
	RateWindow    RateWindow       `bun:"rate_window,type:jsonb" json:"rate_window"`
	Rewards       ClaimRewards     `bun:"rewards,type:jsonb" json:"rewards"`
	AuditTrail    []AuditEntry     `bun:"audit_trail,type:jsonb" json:"audit_trail"`
	Appeal        *ClaimAppeal     `bun:"appeal,type:jsonb" json:"appeal,omitempty"`
	ClaimedAt     time.Time        `bun:"claimed_at,default:current_timestamp" json:"claimed_at"`
	UpdatedAt     time.Time        `bun:"updated_at" json:"updated_at"`
}

// Audit appends one immutable entry. Entries are never edited or removed.
func (c *BadgeClaim) Audit(action, actor, detail string) {
	c.AuditTrail = append(c.AuditTrail, AuditEntry{
		Action: action,
		Actor:  actor,
		At:     time.Now(),
		Detail: detail,
	})
}
