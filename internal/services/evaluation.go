package services

import (
	"context"
	"log"
	"time"

	"inkwell/internal/datastore/redis_store"
	"inkwell/internal/interfaces"
	"inkwell/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
)

type ServiceEvaluation struct {
	container *do.Injector
	redisDB   redis.UniversalClient
	notifier  interfaces.Notifier

	serviceUser        *ServiceUser
	serviceBadge       *ServiceBadge
	serviceEligibility *ServiceEligibility
	serviceClaim       *ServiceClaim
	serviceConfig      *ServiceConfig
}

func NewServiceEvaluation(container *do.Injector) (*ServiceEvaluation, error) {
	dbRedis, err := do.InvokeNamed[redis.UniversalClient](container, "redis-db")
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

	serviceClaim, err := do.Invoke[*ServiceClaim](container)
	if err != nil {
		return nil, err
	}

	serviceConfig, err := do.Invoke[*ServiceConfig](container)
	if err != nil {
		return nil, err
	}

	return &ServiceEvaluation{
		container:          container,
		redisDB:            dbRedis,
		notifier:           notifier,
		serviceUser:        serviceUser,
		serviceBadge:       serviceBadge,
		serviceEligibility: serviceEligibility,
		serviceClaim:       serviceClaim,
		serviceConfig:      serviceConfig,
	}, nil
}

// Enqueue records a platform event for async evaluation. Enqueueing is fire
// and forget from the caller's perspective; evaluation happens in the drain
// loop.
func (service *ServiceEvaluation) Enqueue(ctx context.Context, eventType models.EventType, userID int64, payload map[string]any) (*models.EvaluationEvent, error) {
	event := &models.EvaluationEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	}

	if err := redis_store.PushEvaluationEvent(ctx, service.redisDB, event); err != nil {
		return nil, err
	}

	return event, nil
}

func (service *ServiceEvaluation) QueueLen(ctx context.Context) (int64, error) {
	return redis_store.EvaluationQueueLen(ctx, service.redisDB)
}

// DrainBatch pops up to the configured batch size and evaluates each event
// in isolation. One failing event is logged and skipped, never aborting the
// rest of the batch. Returns the number of events processed.
func (service *ServiceEvaluation) DrainBatch(ctx context.Context) (int, error) {
	batchSize, _ := service.serviceConfig.GetIntConfig(ctx, CONFIG_EVAL_BATCH_SIZE, DEFAULT_EVAL_BATCH_SIZE)

	events, err := redis_store.PopEvaluationBatch(ctx, service.redisDB, batchSize)
	if err != nil {
		return 0, err
	}

	for _, event := range events {
		if err := service.evaluate(ctx, event); err != nil {
			log.Println("evaluate event:", "event:", event.ID, "user:", event.UserID, err)
		}
	}

	return len(events), nil
}

func (service *ServiceEvaluation) evaluate(ctx context.Context, event *models.EvaluationEvent) error {
	// the drain loop must see reward state from this batch, not a cache
	user, err := service.serviceUser.FindUserByIDNoCache(ctx, event.UserID)
	if err != nil {
		return err
	}

	badges, err := service.serviceBadge.ListActiveBadges(ctx)
	if err != nil {
		return err
	}

	var eligible []*models.Badge
	for _, badge := range badges {
		if user.HasBadge(badge.ID) {
			continue
		}

		ok, err := service.serviceEligibility.IsEligible(ctx, user, badge)
		if err != nil {
			log.Println("eligibility check degraded:", "badge:", badge.ID, "user:", user.ID, err)
			continue
		}
		if !ok {
			continue
		}

		if badge.Governance.AllowAutoClaim {
			security := models.ClaimSecurity{SessionID: "engine:" + event.ID}
			if _, err := service.serviceClaim.InitiateClaim(ctx, badge.ID, user, security, ActorSystem); err != nil {
				log.Println("auto claim:", "badge:", badge.ID, "user:", user.ID, err)
			}
			continue
		}

		eligible = append(eligible, badge)
	}

	if len(eligible) == 0 {
		return nil
	}

	spotlight, err := SpotlightBadge(eligible)
	if err != nil || spotlight == nil {
		return err
	}

	keys := make([]string, 0, len(eligible))
	for _, badge := range eligible {
		keys = append(keys, badge.Key)
	}

	go func() {
		err := service.notifier.Notify(context.Background(), user.ID, "badge_eligible", map[string]any{
			"spotlight": spotlight.Key,
			"badges":    keys,
			"event_id":  event.ID,
		})
		if err != nil {
			log.Println("notify badge_eligible:", err)
		}
	}()

	return nil
}
