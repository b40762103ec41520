package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"inkwell/internal/datastore"
	"inkwell/internal/models"
	"inkwell/internal/pkg/caching"
	"inkwell/internal/pkg/expr"

	"github.com/mroth/weightedrand/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/uptrace/bun"
)

// legacyCounts holds the collection-backed inputs of the six-threshold
// legacy check, prefetched so the check itself stays pure.
type legacyCounts struct {
	Blogs    int
	Likes    int
	Comments int
}

// RequirementProgress is one row of the per-requirement breakdown shown in
// the UI. It is a side computation, never a gate.
type RequirementProgress struct {
	Name     string  `json:"name"`
	Required float64 `json:"required"`
	Current  float64 `json:"current"`
	Met      bool    `json:"met"`
}

type ServiceEligibility struct {
	container          *do.Injector
	redisDBCache       redis.UniversalClient
	readonlyPostgresDB *bun.DB
	cache              caching.Cache
	readonlyCache      caching.ReadOnlyCache

	resolver     *VariableResolver
	serviceBadge *ServiceBadge
}

func NewServiceEligibility(container *do.Injector) (*ServiceEligibility, error) {
	dbRedisCache, err := do.InvokeNamed[redis.UniversalClient](container, "redis-cache")
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

	resolver, err := do.Invoke[*VariableResolver](container)
	if err != nil {
		return nil, err
	}

	serviceBadge, err := do.Invoke[*ServiceBadge](container)
	if err != nil {
		return nil, err
	}

	return &ServiceEligibility{container, dbRedisCache, readonlyPostgresDB, cache, readonlyCache, resolver, serviceBadge}, nil
}

// IsEligible runs the ordered short-circuit checks: ownership, availability,
// prerequisites, then requirements. Evaluation faults inside requirement
// checking degrade to "not eligible" rather than erroring, so one broken
// badge definition cannot poison a batch.
func (service *ServiceEligibility) IsEligible(ctx context.Context, user *models.User, badge *models.Badge) (bool, error) {
	if user.HasBadge(badge.ID) {
		return false, nil
	}

	if !badge.Active() || !badge.AvailableFor(user, time.Now()) {
		return false, nil
	}

	for _, prereq := range badge.Prerequisites {
		if !user.HasBadge(prereq) {
			return false, nil
		}
	}

	return service.requirementsMet(ctx, user, badge), nil
}

func (service *ServiceEligibility) requirementsMet(ctx context.Context, user *models.User, badge *models.Badge) bool {
	req := badge.Requirements

	if req.LogicalExpression != "" {
		values := service.resolver.ResolveAll(ctx, req.Variables, user)
		substituted := expr.Substitute(req.LogicalExpression, values)
		return expr.Evaluate(substituted)
	}

	counts, err := service.fetchLegacyCounts(ctx, user.ID)
	if err != nil {
		log.Println("legacy counts degraded:", err)
		counts = legacyCounts{}
	}

	return legacyEligible(user, req, counts, time.Now())
}

// legacyEligible is the fixed six-threshold check. All thresholds must pass;
// there is no partial credit.
func legacyEligible(user *models.User, req models.BadgeRequirements, counts legacyCounts, now time.Time) bool {
	if user.XP < req.XPRequired {
		return false
	}
	if counts.Blogs < req.BlogsRequired {
		return false
	}
	if user.FollowerCount < req.FollowersRequired {
		return false
	}
	if counts.Likes < req.LikesRequired {
		return false
	}
	if counts.Comments < req.CommentsRequired {
		return false
	}
	if user.DaysActive(now) < req.DaysActiveRequired {
		return false
	}
	return true
}

func (service *ServiceEligibility) fetchLegacyCounts(ctx context.Context, userID int64) (legacyCounts, error) {
	var counts legacyCounts

	blogs, err := do.Invoke[*datastore.BlogStore](service.container)
	if err != nil {
		return counts, err
	}
	comments, err := do.Invoke[*datastore.CommentStore](service.container)
	if err != nil {
		return counts, err
	}

	counts.Blogs, err = blogs.CountPublishedByAuthor(ctx, userID)
	if err != nil {
		return counts, err
	}

	counts.Likes, err = blogs.SumLikesByAuthor(ctx, userID)
	if err != nil {
		return counts, err
	}

	counts.Comments, err = comments.CountByAuthor(ctx, userID)
	if err != nil {
		return counts, err
	}

	return counts, nil
}

// Progress reports the per-requirement breakdown plus a confidence value,
// the fraction of requirements currently met.
func (service *ServiceEligibility) Progress(ctx context.Context, user *models.User, badge *models.Badge) ([]RequirementProgress, float64, error) {
	callback := func() ([]RequirementProgress, error) {
		return service.progress(ctx, user, badge)
	}

	rows, err := caching.UseCacheWithRO(ctx, service.readonlyCache, service.cache,
		DBKeyUserBadgeProgress(user.ID, badge.ID), CACHE_TTL_5_MINS, callback)
	if err != nil {
		return nil, 0, err
	}

	return rows, Confidence(rows), nil
}

func Confidence(rows []RequirementProgress) float64 {
	if len(rows) == 0 {
		return 1
	}

	met := 0
	for _, row := range rows {
		if row.Met {
			met++
		}
	}
	return float64(met) / float64(len(rows))
}

func (service *ServiceEligibility) progress(ctx context.Context, user *models.User, badge *models.Badge) ([]RequirementProgress, error) {
	req := badge.Requirements

	if req.LogicalExpression != "" {
		values := service.resolver.ResolveAll(ctx, req.Variables, user)
		substituted := expr.Substitute(req.LogicalExpression, values)
		met := expr.Evaluate(substituted)

		rows := make([]RequirementProgress, 0, len(values))
		for name, value := range values {
			rows = append(rows, RequirementProgress{
				Name:    name,
				Current: value,
				Met:     met,
			})
		}
		return rows, nil
	}

	counts, err := service.fetchLegacyCounts(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return []RequirementProgress{
		{Name: "xp", Required: float64(req.XPRequired), Current: float64(user.XP), Met: user.XP >= req.XPRequired},
		{Name: "blogs", Required: float64(req.BlogsRequired), Current: float64(counts.Blogs), Met: counts.Blogs >= req.BlogsRequired},
		{Name: "followers", Required: float64(req.FollowersRequired), Current: float64(user.FollowerCount), Met: user.FollowerCount >= req.FollowersRequired},
		{Name: "likes", Required: float64(req.LikesRequired), Current: float64(counts.Likes), Met: counts.Likes >= req.LikesRequired},
		{Name: "comments", Required: float64(req.CommentsRequired), Current: float64(counts.Comments), Met: counts.Comments >= req.CommentsRequired},
		{Name: "days_active", Required: float64(req.DaysActiveRequired), Current: float64(user.DaysActive(now)), Met: user.DaysActive(now) >= req.DaysActiveRequired},
	}, nil
}

// EligibleBadges returns the active badges the user could claim right now.
// Results are memoized for five minutes and invalidated on reward
// application; a cold cache just recomputes.
func (service *ServiceEligibility) EligibleBadges(ctx context.Context, user *models.User) ([]*models.Badge, error) {
	callback := func() ([]*models.Badge, error) {
		badges, err := service.serviceBadge.ListActiveBadges(ctx)
		if err != nil {
			return nil, err
		}

		var eligible []*models.Badge
		for _, badge := range badges {
			ok, err := service.IsEligible(ctx, user, badge)
			if err != nil {
				log.Println("eligibility check degraded:", "badge:", badge.ID, err)
				continue
			}
			if ok {
				eligible = append(eligible, badge)
			}
		}
		return eligible, nil
	}

	return caching.UseCacheWithRO(ctx, service.readonlyCache, service.cache,
		DBKeyUserEligibleBadges(user.ID), CACHE_TTL_5_MINS, callback)
}

// SpotlightBadge picks one badge to headline an eligibility notification,
// weighted so rarer badges win more often.
func SpotlightBadge(badges []*models.Badge) (*models.Badge, error) {
	if len(badges) == 0 {
		return nil, nil
	}
	if len(badges) == 1 {
		return badges[0], nil
	}

	choices := make([]weightedrand.Choice[*models.Badge, int], 0, len(badges))
	for _, badge := range badges {
		choices = append(choices, weightedrand.NewChoice(badge, badge.Rarity.Weight()))
	}

	gacha, err := NewServiceGacha(choices)
	if err != nil {
		return nil, err
	}
	return gacha.Pick(), nil
}

// InvalidateUser clears the memoized eligibility state after anything that
// could change it, reward application above all.
func (service *ServiceEligibility) InvalidateUser(ctx context.Context, userID int64) {
	if err := service.cache.Delete(ctx, DBKeyUserEligibleBadges(userID)); err != nil {
		log.Println(err)
	}

	//nolint:errcheck
	caching.DeleteKeys(ctx, service.redisDBCache, fmt.Sprintf("user:%d:badge_progress:*", userID))
}
