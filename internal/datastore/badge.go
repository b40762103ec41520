package datastore

import (
	"context"
	"database/sql"
	"time"

	"inkwell/internal/models"

	"github.com/uptrace/bun"
)

func CreateTableBadge(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.Badge)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.Badge)(nil)).Index("index_badge_key").IfNotExists().Unique().Column("key").Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.Badge)(nil)).Index("index_badge_name").IfNotExists().Unique().Column("name").Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.Badge)(nil)).Index("index_badge_status").IfNotExists().Column("status").Exec(ctx)
	if err != nil {
		return err
	}

	return nil
}

func FindBadgeByID(ctx context.Context, db bun.IDB, badgeID int64) (*models.Badge, error) {
	var badge models.Badge
	err := db.NewSelect().Model(&badge).Where("id = ?", badgeID).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &badge, nil
}

func FindBadgeByKey(ctx context.Context, db bun.IDB, key string) (*models.Badge, error) {
	var badge models.Badge
	err := db.NewSelect().Model(&badge).Where("key = ?", key).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &badge, nil
}

func FindBadgeByName(ctx context.Context, db bun.IDB, name string) (*models.Badge, error) {
	var badge models.Badge
	err := db.NewSelect().Model(&badge).Where("name = ?", name).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &badge, nil
}

func ListActiveBadges(ctx context.Context, db bun.IDB) ([]*models.Badge, error) {
	var badges []*models.Badge
	err := db.NewSelect().Model(&badges).Where("status = ?", models.BadgeStatusActive).Order("id ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return badges, nil
}

func ListBadges(ctx context.Context, db bun.IDB, limit int, offset int) ([]*models.Badge, error) {
	var badges []*models.Badge
	err := db.NewSelect().Model(&badges).Order("id ASC").Limit(limit).Offset(offset).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return badges, nil
}

func CreateBadge(ctx context.Context, db *bun.DB, badge *models.Badge) (*models.Badge, error) {
	_, err := db.NewInsert().Model(badge).Exec(ctx)
	if err != nil {
		return nil, err
	}
	return badge, nil
}

func UpdateBadge(ctx context.Context, db bun.IDB, badge *models.Badge) (*models.Badge, error) {
	badge.UpdatedAt = time.Now()
	_, err := db.NewUpdate().Model(badge).WherePK().Exec(ctx)
	if err != nil {
		return nil, err
	}
	return badge, nil
}

// IncrementBadgeAnalytics bumps the attempt/earned counters and recomputes
// the popularity score under a row lock. Counters only ever grow, so
// repeated delivery of the same logical event is harmless as long as the
// caller deduplicates at the claim level.
func IncrementBadgeAnalytics(ctx context.Context, db *bun.DB, badgeID int64, attempts int, earned int) error {
	return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var badge models.Badge
		err := tx.NewSelect().Model(&badge).Where("id = ?", badgeID).For("UPDATE").Scan(ctx)
		if err != nil {
			return err
		}

		badge.Analytics.TotalAttempts += attempts
		badge.Analytics.TotalEarned += earned
		badge.Analytics.RecomputePopularity()
		badge.UpdatedAt = time.Now()

		_, err = tx.NewUpdate().Model(&badge).Column("analytics", "updated_at").WherePK().Exec(ctx)
		return err
	})
}
