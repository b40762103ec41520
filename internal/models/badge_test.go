package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecomputePopularity(t *testing.T) {
	var a BadgeAnalytics
	a.RecomputePopularity()
	assert.Equal(t, float64(0), a.PopularityScore)

	a = BadgeAnalytics{TotalEarned: 50, TotalAttempts: 100}
	a.RecomputePopularity()
	// 0.5 * log10(101) = 1.00216..., rounded to 3 decimals
	assert.Equal(t, 1.002, a.PopularityScore)

	a = BadgeAnalytics{TotalEarned: 0, TotalAttempts: 100}
	a.RecomputePopularity()
	assert.Equal(t, float64(0), a.PopularityScore)

	a = BadgeAnalytics{TotalEarned: 9, TotalAttempts: 9}
	a.RecomputePopularity()
	assert.Equal(t, float64(1), a.PopularityScore)
}

func TestRarityWeight(t *testing.T) {
	assert.Equal(t, 1, RarityCommon.Weight())
	assert.Equal(t, 2, RarityUncommon.Weight())
	assert.Equal(t, 4, RarityRare.Weight())
	assert.Equal(t, 8, RarityEpic.Weight())
	assert.Equal(t, 16, RarityLegendary.Weight())
	assert.Equal(t, 32, RarityMythic.Weight())
	assert.Equal(t, 1, BadgeRarity("bogus").Weight())
}

func TestAvailableForTimeWindow(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	user := &User{Level: 5}

	badge := &Badge{Status: BadgeStatusActive}
	assert.True(t, badge.AvailableFor(user, now))

	start := now.Add(time.Hour)
	badge.Availability.StartTime = &start
	assert.False(t, badge.AvailableFor(user, now))

	start = now.Add(-time.Hour)
	end := now.Add(-time.Minute)
	badge.Availability.StartTime = &start
	badge.Availability.EndTime = &end
	assert.False(t, badge.AvailableFor(user, now))

	end = now.Add(time.Hour)
	badge.Availability.EndTime = &end
	assert.True(t, badge.AvailableFor(user, now))
}

func TestAvailableForCohort(t *testing.T) {
	now := time.Now()
	badge := &Badge{
		Availability: BadgeAvailability{MinLevel: 3, MaxLevel: 10, Countries: []string{"VN", "SG"}},
	}

	assert.False(t, badge.AvailableFor(&User{Level: 2, Country: "VN"}, now))
	assert.False(t, badge.AvailableFor(&User{Level: 11, Country: "VN"}, now))
	assert.False(t, badge.AvailableFor(&User{Level: 5, Country: "US"}, now))
	assert.True(t, badge.AvailableFor(&User{Level: 5, Country: "SG"}, now))
}

func TestInSeason(t *testing.T) {
	june := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	january := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	december := time.Date(2026, 12, 5, 0, 0, 0, 0, time.UTC)

	assert.True(t, inSeason("06-01", "06-30", june))
	assert.False(t, inSeason("07-01", "07-31", june))

	// window wrapping the new year
	assert.True(t, inSeason("12-01", "01-15", december))
	assert.True(t, inSeason("12-01", "01-15", january))
	assert.False(t, inSeason("12-01", "01-15", june))
}
