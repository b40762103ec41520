package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrClaimLock = errors.New("claim locked")
var ErrDuplicateClaim = errors.New("an unresolved claim already exists for this badge")
var ErrBadgeUnavailable = errors.New("badge is not available")
var ErrNotEligible = errors.New("requirements not met")
var ErrClaimRateLimited = errors.New("too many claim attempts")

const (
	CONFIG_SERVER_MODE             = "SERVER_MODE"
	CONFIG_EVAL_BATCH_SIZE         = "EVAL_BATCH_SIZE"
	CONFIG_EVAL_DRAIN_SPEC         = "EVAL_DRAIN_SPEC"
	CONFIG_CLAIMS_PER_HOUR         = "CLAIMS_PER_HOUR"
	CONFIG_FRAUD_THRESHOLD_DEFAULT = "FRAUD_THRESHOLD_DEFAULT"
	CONFIG_NOTIFY_WEBHOOK_URL      = "NOTIFY_WEBHOOK_URL"

	SERVER_MODE_DEVELOPMENT = "development"
	SERVER_MODE_STAGING     = "staging"
	SERVER_MODE_PRODUCTION  = "production"

	DEFAULT_EVAL_BATCH_SIZE = 50
	DEFAULT_EVAL_DRAIN_SPEC = "@every 1m"
	DEFAULT_CLAIMS_PER_HOUR = 30
	DEFAULT_FRAUD_THRESHOLD = 0.8

	CACHE_TTL_5_SECONDS  = 5 * time.Second
	CACHE_TTL_15_SECONDS = 15 * time.Second
	CACHE_TTL_1_MIN      = 1 * time.Minute
	CACHE_TTL_5_MINS     = 5 * time.Minute
	CACHE_TTL_15_MINS    = 15 * time.Minute
	CACHE_TTL_30_MINS    = 30 * time.Minute
	CACHE_TTL_1_HOUR     = 1 * time.Hour
	CACHE_TTL_1_DAY      = 24 * time.Hour

	CLAIM_RATE_WINDOW = 1 * time.Hour
)

func LockKeyClaim(badgeID int64, userID int64) string {
	return fmt.Sprintf("lock:claim:%d:%d", badgeID, userID)
}

func LockKeyClaimProcess(claimID string) string {
	return fmt.Sprintf("lock:claim-process:%s", claimID)
}

// db
func DBKeyUser(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func DBKeyBadge(badgeID int64) string {
	return fmt.Sprintf("badge:%d", badgeID)
}

func DBKeyBadgeByKey(key string) string {
	return fmt.Sprintf("badge:key:%s", strings.ToLower(key))
}

func DBKeyActiveBadges() string {
	return "badges:active"
}

func DBKeyConfig(key string) string {
	return fmt.Sprintf("config:%s", strings.ToLower(key))
}

func DBKeyUserEligibleBadges(userID int64) string {
	return fmt.Sprintf("user:%d:eligible_badges", userID)
}

func DBKeyUserBadgeProgress(userID int64, badgeID int64) string {
	return fmt.Sprintf("user:%d:badge_progress:%d", userID, badgeID)
}

func LimitKeyClaim(userID int64) string {
	return fmt.Sprintf("limit:claim:%d", userID)
}
