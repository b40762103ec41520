package services

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"inkwell/internal/datastore"
	"inkwell/internal/models"
	"inkwell/internal/pkg/caching"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/samber/do"
	"github.com/uptrace/bun"
)

type ServiceBadge struct {
	container          *do.Injector
	postgresDB         *bun.DB
	readonlyPostgresDB *bun.DB
	cache              caching.Cache
	readonlyCache      caching.ReadOnlyCache
}

func NewServiceBadge(container *do.Injector) (*ServiceBadge, error) {
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

	readonlyCache, err := do.Invoke[caching.ReadOnlyCache](container)
	if err != nil {
		return nil, err
	}

	return &ServiceBadge{container, postgresDB, readonlyPostgresDB, cache, readonlyCache}, nil
}

func validateBadge(badge *models.Badge) error {
	if badge == nil {
		return errorx.Wrap(errors.New("badge is nil"), errorx.Validation)
	}
	if strings.TrimSpace(badge.Key) == "" {
		return errorx.Wrap(errors.New("badge key is required"), errorx.Validation)
	}
	if strings.TrimSpace(badge.Name) == "" {
		return errorx.Wrap(errors.New("badge name is required"), errorx.Validation)
	}
	if !badge.Rarity.Valid() {
		return errorx.Wrap(errors.New("unknown rarity"), errorx.Validation)
	}
	if !badge.Category.Valid() {
		return errorx.Wrap(errors.New("unknown category"), errorx.Validation)
	}
	if badge.Governance.FraudThreshold < 0 || badge.Governance.FraudThreshold > 1 {
		return errorx.Wrap(errors.New("fraud threshold must be within [0, 1]"), errorx.Validation)
	}
	return nil
}

func (service *ServiceBadge) CreateBadge(ctx context.Context, badge *models.Badge) (*models.Badge, error) {
	if err := validateBadge(badge); err != nil {
		return nil, err
	}

	badge.Key = strings.ToLower(strings.TrimSpace(badge.Key))

	existing, err := datastore.FindBadgeByKey(ctx, service.postgresDB, badge.Key)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if existing != nil {
		return nil, errorx.Wrap(errors.New("badge key already exists"), errorx.Invalid)
	}

	existing, err = datastore.FindBadgeByName(ctx, service.postgresDB, badge.Name)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if existing != nil {
		return nil, errorx.Wrap(errors.New("badge name already exists"), errorx.Invalid)
	}

	if badge.Status == "" {
		badge.Status = models.BadgeStatusActive
	}
	badge.Analytics.RecomputePopularity()

	now := time.Now()
	badge.CreatedAt = now
	badge.UpdatedAt = now

	badge, err = datastore.CreateBadge(ctx, service.postgresDB, badge)
	if err != nil {
		return nil, err
	}

	service.clearBadgeCache(ctx, badge)
	return badge, nil
}

func (service *ServiceBadge) UpdateBadge(ctx context.Context, badge *models.Badge) (*models.Badge, error) {
	if err := validateBadge(badge); err != nil {
		return nil, err
	}

	// popularity is always a function of the counters, recomputed on save
	badge.Analytics.RecomputePopularity()

	badge, err := datastore.UpdateBadge(ctx, service.postgresDB, badge)
	if err != nil {
		return nil, err
	}

	service.clearBadgeCache(ctx, badge)
	return badge, nil
}

func (service *ServiceBadge) DeprecateBadge(ctx context.Context, badgeID int64) (*models.Badge, error) {
	badge, err := datastore.FindBadgeByID(ctx, service.postgresDB, badgeID)
	if err == sql.ErrNoRows {
		return nil, errorx.Wrap(errors.New("badge not found"), errorx.NotExist)
	}
	if err != nil {
		return nil, err
	}

	badge.Status = models.BadgeStatusDeprecated
	return service.UpdateBadge(ctx, badge)
}

func (service *ServiceBadge) GetBadge(ctx context.Context, badgeID int64) (*models.Badge, error) {
	callback := func() (*models.Badge, error) {
		badge, err := datastore.FindBadgeByID(ctx, service.readonlyPostgresDB, badgeID)
		if err == sql.ErrNoRows {
			return nil, errorx.Wrap(errors.New("badge not found"), errorx.NotExist)
		}
		return badge, err
	}

	return caching.UseCacheWithRO(ctx, service.readonlyCache, service.cache, DBKeyBadge(badgeID), CACHE_TTL_5_MINS, callback)
}

func (service *ServiceBadge) GetBadgeByKey(ctx context.Context, key string) (*models.Badge, error) {
	callback := func() (*models.Badge, error) {
		badge, err := datastore.FindBadgeByKey(ctx, service.readonlyPostgresDB, strings.ToLower(key))
		if err == sql.ErrNoRows {
			return nil, errorx.Wrap(errors.New("badge not found"), errorx.NotExist)
		}
		return badge, err
	}

	return caching.UseCacheWithRO(ctx, service.readonlyCache, service.cache, DBKeyBadgeByKey(key), CACHE_TTL_5_MINS, callback)
}

func (service *ServiceBadge) ListActiveBadges(ctx context.Context) ([]*models.Badge, error) {
	callback := func() ([]*models.Badge, error) {
		return datastore.ListActiveBadges(ctx, service.readonlyPostgresDB)
	}

	return caching.UseCacheWithRO(ctx, service.readonlyCache, service.cache, DBKeyActiveBadges(), CACHE_TTL_5_MINS, callback)
}

func (service *ServiceBadge) ListBadges(ctx context.Context, limit int, offset int) ([]*models.Badge, error) {
	return datastore.ListBadges(ctx, service.readonlyPostgresDB, limit, offset)
}

// RecordAttempt and RecordEarned feed the analytics counters. Both read the
// write db, the counters must not lag behind replica state.
func (service *ServiceBadge) RecordAttempt(ctx context.Context, badgeID int64) {
	if err := datastore.IncrementBadgeAnalytics(ctx, service.postgresDB, badgeID, 1, 0); err != nil {
		log.Println("increment badge attempts:", "badge:", badgeID, err)
	}
	service.clearBadgeCacheByID(ctx, badgeID)
}

func (service *ServiceBadge) RecordEarned(ctx context.Context, badgeID int64) {
	if err := datastore.IncrementBadgeAnalytics(ctx, service.postgresDB, badgeID, 0, 1); err != nil {
		log.Println("increment badge earned:", "badge:", badgeID, err)
	}
	service.clearBadgeCacheByID(ctx, badgeID)
}

func (service *ServiceBadge) clearBadgeCache(ctx context.Context, badge *models.Badge) {
	if err := service.cache.Delete(ctx, DBKeyBadge(badge.ID)); err != nil {
		log.Println(err)
	}
	if err := service.cache.Delete(ctx, DBKeyBadgeByKey(badge.Key)); err != nil {
		log.Println(err)
	}
	if err := service.cache.Delete(ctx, DBKeyActiveBadges()); err != nil {
		log.Println(err)
	}
}

func (service *ServiceBadge) clearBadgeCacheByID(ctx context.Context, badgeID int64) {
	if err := service.cache.Delete(ctx, DBKeyBadge(badgeID)); err != nil {
		log.Println(err)
	}
	if err := service.cache.Delete(ctx, DBKeyActiveBadges()); err != nil {
		log.Println(err)
	}
}
