package services

import (
	"context"
	"sync"
	"time"

	"inkwell/internal/datastore"
	"inkwell/internal/models"

	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

// CollectionAggregator is the per-collection port the resolver queries.
// Implementations live in datastore; the resolver never reaches into a
// collection it was not handed explicitly.
type CollectionAggregator interface {
	Aggregate(ctx context.Context, userID int64, field string, agg models.Aggregation, since *time.Time, filter map[string]any) (float64, error)
}

type VariableResolver struct {
	blogs        CollectionAggregator
	comments     CollectionAggregator
	series       CollectionAggregator
	interactions CollectionAggregator
}

func NewVariableResolver(container *do.Injector) (*VariableResolver, error) {
	blogs, err := do.Invoke[*datastore.BlogStore](container)
	if err != nil {
		return nil, err
	}

	comments, err := do.Invoke[*datastore.CommentStore](container)
	if err != nil {
		return nil, err
	}

	series, err := do.Invoke[*datastore.SeriesStore](container)
	if err != nil {
		return nil, err
	}

	interactions, err := do.Invoke[*datastore.InteractionStore](container)
	if err != nil {
		return nil, err
	}

	return &VariableResolver{blogs, comments, series, interactions}, nil
}

// Resolve computes one variable's current value for the user. Unknown
// sources resolve to 0 rather than erroring, matching the evaluator's
// everything-degrades-to-zero contract.
func (r *VariableResolver) Resolve(ctx context.Context, def models.VariableDef, user *models.User) (float64, error) {
	switch def.Source {
	case models.SourceUser:
		return userField(def.Field, user), nil
	case models.SourceSystem:
		return systemField(def.Field), nil
	}

	var agg CollectionAggregator
	switch def.Source {
	case models.SourceBlog:
		agg = r.blogs
	case models.SourceComment:
		agg = r.comments
	case models.SourceSeries:
		agg = r.series
	case models.SourceInteraction:
		agg = r.interactions
	default:
		return 0, nil
	}

	var since *time.Time
	if def.TimeWindowDays > 0 {
		t := time.Now().AddDate(0, 0, -def.TimeWindowDays)
		since = &t
	}

	return agg.Aggregate(ctx, user.ID, def.Field, def.Aggregation, since, def.Filter)
}

// ResolveAll resolves every declared variable concurrently. A failed
// variable becomes 0; one bad definition must not block the others.
func (r *VariableResolver) ResolveAll(ctx context.Context, defs map[string]models.VariableDef, user *models.User) map[string]float64 {
	values := make(map[string]float64, len(defs))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for name, def := range defs {
		name, def := name, def
		g.Go(func() error {
			v, err := r.Resolve(ctx, def, user)
			if err != nil {
				v = 0
			}
			mu.Lock()
			values[name] = v
			mu.Unlock()
			return nil
		})
	}

	//nolint:errcheck
	g.Wait()
	return values
}

func userField(field string, user *models.User) float64 {
	switch field {
	case "xp":
		return float64(user.XP)
	case "level":
		return float64(user.Level)
	case "follower_count":
		return float64(user.FollowerCount)
	case "badge_count":
		return float64(len(user.Badges))
	case "days_active":
		return float64(user.DaysActive(time.Now()))
	default:
		return 0
	}
}

func systemField(field string) float64 {
	now := time.Now().UTC()
	switch field {
	case "unix_time":
		return float64(now.Unix())
	case "day_of_week":
		return float64(now.Weekday())
	case "month":
		return float64(now.Month())
	default:
		return 0
	}
}
