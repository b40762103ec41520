package models

import (
	"math"
	"time"

	"github.com/uptrace/bun"
)

type BadgeRarity string

const (
	RarityCommon    BadgeRarity = "common"
	RarityUncommon  BadgeRarity = "uncommon"
	RarityRare      BadgeRarity = "rare"
	RarityEpic      BadgeRarity = "epic"
	RarityLegendary BadgeRarity = "legendary"
	RarityMythic    BadgeRarity = "mythic"
)

func (r BadgeRarity) Valid() bool {
	switch r {
	case RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary, RarityMythic:
		return true
	default:
		return false
	}
}

// Weight is used when one of several eligible badges has to be picked as the
// spotlight of a notification. Rarer badges win more often.
func (r BadgeRarity) Weight() int {
	switch r {
	case RarityUncommon:
		return 2
	case RarityRare:
		return 4
	case RarityEpic:
		return 8
	case RarityLegendary:
		return 16
	case RarityMythic:
		return 32
	default:
		return 1
	}
}

type BadgeCategory string

const (
	CategoryAuthorship BadgeCategory = "authorship"
	CategoryEngagement BadgeCategory = "engagement"
	CategoryCommunity  BadgeCategory = "community"
	CategoryMilestone  BadgeCategory = "milestone"
	CategorySeasonal   BadgeCategory = "seasonal"
	CategorySpecial    BadgeCategory = "special"
)

func (c BadgeCategory) Valid() bool {
	switch c {
	case CategoryAuthorship, CategoryEngagement, CategoryCommunity, CategoryMilestone, CategorySeasonal, CategorySpecial:
		return true
	default:
		return false
	}
}

type BadgeStatus string

const (
	BadgeStatusActive     BadgeStatus = "active"
	BadgeStatusInactive   BadgeStatus = "inactive"
	BadgeStatusDeprecated BadgeStatus = "deprecated"
)

type VariableSource string

const (
	SourceUser        VariableSource = "user"
	SourceBlog        VariableSource = "blog"
	SourceComment     VariableSource = "comment"
	SourceSeries      VariableSource = "series"
	SourceInteraction VariableSource = "interaction"
	SourceSystem      VariableSource = "system"
)

type Aggregation string

const (
	AggregationCount    Aggregation = "count"
	AggregationSum      Aggregation = "sum"
	AggregationAvg      Aggregation = "avg"
	AggregationMin      Aggregation = "min"
	AggregationMax      Aggregation = "max"
	AggregationDistinct Aggregation = "distinct"
)

// VariableDef declares one named input of a badge's logical expression.
type VariableDef struct {
	Type           string         `json:"type"`
	Source         VariableSource `json:"source"`
	Field          string         `json:"field"`
	Filter         map[string]any `json:"filter,omitempty"`
	Aggregation    Aggregation    `json:"aggregation"`
	TimeWindowDays int            `json:"time_window_days,omitempty"`
}

// BadgeRequirements carries both requirement styles: the legacy fixed
// thresholds (all must pass) and the optional expression over named variables.
// When LogicalExpression is set it takes precedence over the thresholds.
type BadgeRequirements struct {
	XPRequired         int                    `json:"xp_required"`
	BlogsRequired      int                    `json:"blogs_required"`
	FollowersRequired  int                    `json:"followers_required"`
	LikesRequired      int                    `json:"likes_required"`
	CommentsRequired   int                    `json:"comments_required"`
	DaysActiveRequired int                    `json:"days_active_required"`
	LogicalExpression  string                 `json:"logical_expression,omitempty"`
	Variables          map[string]VariableDef `json:"variables,omitempty"`
}

// BadgeAvailability restricts when and for whom a badge can be claimed.
type BadgeAvailability struct {
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	// Seasonal windows recur yearly, expressed as month-day boundaries ("12-01").
	Seasonal    bool     `json:"seasonal"`
	SeasonStart string   `json:"season_start,omitempty"`
	SeasonEnd   string   `json:"season_end,omitempty"`
	Countries   []string `json:"countries,omitempty"`
	MinLevel    int      `json:"min_level,omitempty"`
	MaxLevel    int      `json:"max_level,omitempty"`
}

type BadgeRewards struct {
	XP             int      `json:"xp"`
	FeatureUnlocks []string `json:"feature_unlocks,omitempty"`
	Privileges     []string `json:"privileges,omitempty"`
}

type BadgeGovernance struct {
	MaxClaimsPerUser    int     `json:"max_claims_per_user"`
	CooldownHours       int     `json:"cooldown_hours"`
	FraudThreshold      float64 `json:"fraud_threshold"`
	RequireManualReview bool    `json:"require_manual_review"`
	AllowAutoClaim      bool    `json:"allow_auto_claim"`
}

type BadgeAnalytics struct {
	TotalEarned     int     `json:"total_earned"`
	TotalAttempts   int     `json:"total_attempts"`
	PopularityScore float64 `json:"popularity_score"`
}

// RecomputePopularity derives the popularity score from the counters. It is a
// pure function of the analytics fields and runs on every badge save so the
// stored score can never drift from the counters.
func (a *BadgeAnalytics) RecomputePopularity() {
	if a.TotalAttempts <= 0 {
		a.PopularityScore = 0
		return
	}

	conversion := float64(a.TotalEarned) / float64(a.TotalAttempts)
	volume := math.Log10(float64(a.TotalAttempts) + 1)
	a.PopularityScore = math.Round(conversion*volume*1000) / 1000
}

type Badge struct {
	bun.BaseModel `bun:"table:badge"`
	ID            int64             `bun:"id,pk,autoincrement" json:"id"`
	Key           string            `bun:"key" json:"key"`
	Name          string            `bun:"name" json:"name"`
	Description   string            `bun:"description" json:"description"`
	Icon          string            `bun:"icon" json:"icon"`
	Rarity        BadgeRarity       `bun:"rarity" json:"rarity"`
	Category      BadgeCategory     `bun:"category" json:"category"`
	Status        BadgeStatus       `bun:"status" json:"status"`
	Requirements  BadgeRequirements `bun:"requirements,type:jsonb" json:"requirements"`
	Prerequisites []int64           `bun:"prerequisites,type:jsonb" json:"prerequisites"`
	Availability  BadgeAvailability `bun:"availability,type:jsonb" json:"availability"`
	Rewards       BadgeRewards      `bun:"rewards,type:jsonb" json:"rewards"`
	Governance    BadgeGovernance   `bun:"governance,type:jsonb" json:"governance"`
	Analytics     BadgeAnalytics    `bun:"analytics,type:jsonb" json:"analytics"`
	CreatedAt     time.Time         `bun:"created_at,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time         `bun:"updated_at" json:"updated_at"`
}

func (b *Badge) Active() bool {
	return b.Status == BadgeStatusActive
}

// AvailableFor reports whether the badge's time window, seasonal window,
// country allowlist and level cohort admit the user at the given instant.
func (b *Badge) AvailableFor(user *User, now time.Time) bool {
	av := b.Availability

	if av.StartTime != nil && now.Before(*av.StartTime) {
		return false
	}
	if av.EndTime != nil && now.After(*av.EndTime) {
		return false
	}

	if av.Seasonal && av.SeasonStart != "" && av.SeasonEnd != "" {
		if !inSeason(av.SeasonStart, av.SeasonEnd, now) {
			return false
		}
	}

	if len(av.Countries) > 0 {
		allowed := false
		for _, c := range av.Countries {
			if c == user.Country {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if av.MinLevel > 0 && user.Level < av.MinLevel {
		return false
	}
	if av.MaxLevel > 0 && user.Level > av.MaxLevel {
		return false
	}

	return true
}

// inSeason compares "MM-DD" boundaries; windows may wrap the new year
// (e.g. 12-01 .. 01-15).
func inSeason(start, end string, now time.Time) bool {
	day := now.Format("01-02")
	if start <= end {
		return day >= start && day <= end
	}
	return day >= start || day <= end
}
