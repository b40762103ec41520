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
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/uptrace/bun"
)

type ServiceUser struct {
	container          *do.Injector
	redisDBCache       redis.UniversalClient
	postgresDB         *bun.DB
	readonlyPostgresDB *bun.DB
	cache              caching.Cache
	readonlyCache      caching.ReadOnlyCache
}

func NewServiceUser(container *do.Injector) (*ServiceUser, error) {
	dbRedisCache, err := do.InvokeNamed[redis.UniversalClient](container, "redis-cache")
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

	readonlyCache, err := do.Invoke[caching.ReadOnlyCache](container)
	if err != nil {
		return nil, err
	}

	return &ServiceUser{container, dbRedisCache, postgresDB, readonlyPostgresDB, cache, readonlyCache}, nil
}

func (service *ServiceUser) FindOrCreateUser(ctx context.Context, userAuth *models.UserFromAuth) (*models.User, error) {
	if userAuth == nil {
		return nil, errors.New("userAuth is nil")
	}

	user, _ := service.FindUserByID(ctx, userAuth.ID)
	if user != nil {
		return user, nil
	}

	now := time.Now()
	newUser := &models.User{
		ID:        userAuth.ID,
		Username:  strings.ToLower(userAuth.Username),
		Level:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	log.Println("Create new user:", "user:", newUser.ID, "username:", newUser.Username)
	return datastore.CreateUser(ctx, service.postgresDB, newUser)
}

func (service *ServiceUser) FindUserByID(ctx context.Context, userID int64) (*models.User, error) {
	callback := func() (*models.User, error) {
		user, err := datastore.FindUserByID(ctx, service.readonlyPostgresDB, userID)
		if err == sql.ErrNoRows {
			return nil, errorx.Wrap(errors.New("user not found"), errorx.NotExist)
		}
		return user, err
	}
	return caching.UseCacheWithRO(ctx, service.readonlyCache, service.cache, DBKeyUser(userID), CACHE_TTL_5_MINS, callback)
}

// FindUserByIDNoCache reads the write db. Reward application and batch
// evaluation need fresh state, not a five minute old snapshot.
func (service *ServiceUser) FindUserByIDNoCache(ctx context.Context, userID int64) (*models.User, error) {
	user, err := datastore.FindUserByID(ctx, service.postgresDB, userID)
	if err == sql.ErrNoRows {
		return nil, errorx.Wrap(errors.New("user not found"), errorx.NotExist)
	}
	return user, err
}

// AwardXP adds xp, recomputes the level and persists both. Returns the new
// level; the badge engine treats this as the authoritative leveling rule.
func (service *ServiceUser) AwardXP(ctx context.Context, userID int64, amount int) (int, error) {
	user, err := service.FindUserByIDNoCache(ctx, userID)
	if err != nil {
		return 0, err
	}

	user.XP += amount
	user.Level = models.LevelForXP(user.XP)
	user.UpdatedAt = time.Now()

	if err := datastore.UpdateUserRewards(ctx, service.postgresDB, user); err != nil {
		return 0, err
	}

	service.ClearUserCache(ctx, userID)
	return user.Level, nil
}

func (service *ServiceUser) ClearUserCache(ctx context.Context, userID int64) {
	if err := service.cache.Delete(ctx, DBKeyUser(userID)); err != nil {
		log.Println(err)
	}
}
