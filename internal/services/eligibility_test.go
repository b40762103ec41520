package services

import (
	"testing"
	"time"

	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestLegacyEligibleAllThresholds(t *testing.T) {
	now := time.Now()
	req := models.BadgeRequirements{
		XPRequired:         100,
		BlogsRequired:      5,
		FollowersRequired:  10,
		LikesRequired:      50,
		CommentsRequired:   20,
		DaysActiveRequired: 7,
	}

	user := &models.User{
		XP:            150,
		FollowerCount: 12,
		CreatedAt:     now.Add(-30 * 24 * time.Hour),
	}
	counts := legacyCounts{Blogs: 6, Likes: 60, Comments: 25}

	assert.True(t, legacyEligible(user, req, counts, now))

	// one failing threshold fails the whole check
	short := counts
	short.Comments = 19
	assert.False(t, legacyEligible(user, req, short, now))

	poor := *user
	poor.XP = 99
	assert.False(t, legacyEligible(&poor, req, counts, now))
}

func TestLegacyEligibleDegradedCounts(t *testing.T) {
	now := time.Now()
	req := models.BadgeRequirements{XPRequired: 40, BlogsRequired: 1}
	user := &models.User{XP: 40, CreatedAt: now}

	// counts degraded to zero must not pass a blog threshold
	assert.False(t, legacyEligible(user, req, legacyCounts{}, now))

	req.BlogsRequired = 0
	assert.True(t, legacyEligible(user, req, legacyCounts{}, now))
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, float64(1), Confidence(nil))

	rows := []RequirementProgress{
		{Name: "xp", Met: true},
		{Name: "blogs", Met: false},
		{Name: "likes", Met: true},
		{Name: "comments", Met: false},
	}
	assert.Equal(t, 0.5, Confidence(rows))

	for i := range rows {
		rows[i].Met = true
	}
	assert.Equal(t, float64(1), Confidence(rows))
}

func TestSpotlightBadge(t *testing.T) {
	spotlight, err := SpotlightBadge(nil)
	assert.NoError(t, err)
	assert.Nil(t, spotlight)

	only := &models.Badge{ID: 1, Rarity: models.RarityCommon}
	spotlight, err = SpotlightBadge([]*models.Badge{only})
	assert.NoError(t, err)
	assert.Equal(t, only, spotlight)

	pool := []*models.Badge{
		{ID: 1, Rarity: models.RarityCommon},
		{ID: 2, Rarity: models.RarityLegendary},
	}
	spotlight, err = SpotlightBadge(pool)
	assert.NoError(t, err)
	assert.Contains(t, pool, spotlight)
}
