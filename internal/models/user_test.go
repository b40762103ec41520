package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLevelForXP(t *testing.T) {
	cases := []struct {
		xp    int
		level int
	}{
		{-5, 1},
		{0, 1},
		{99, 1},
		{100, 2},
		{399, 2},
		{400, 3},
		{899, 3},
		{900, 4},
		{10000, 11},
	}

	for _, c := range cases {
		assert.Equal(t, c.level, LevelForXP(c.xp), "xp %d", c.xp)
	}
}

func TestGrantBadgeSetSemantics(t *testing.T) {
	user := &User{}

	assert.False(t, user.HasBadge(7))
	assert.True(t, user.GrantBadge(7))
	assert.True(t, user.HasBadge(7))

	// second grant must not change the set
	assert.False(t, user.GrantBadge(7))
	assert.Equal(t, []int64{7}, user.Badges)

	assert.True(t, user.GrantBadge(9))
	assert.Equal(t, []int64{7, 9}, user.Badges)
}

func TestDaysActive(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	user := &User{CreatedAt: now.Add(-10 * 24 * time.Hour)}
	assert.Equal(t, 10, user.DaysActive(now))

	user = &User{CreatedAt: now.Add(time.Hour)}
	assert.Equal(t, 0, user.DaysActive(now))

	user = &User{}
	assert.Equal(t, 0, user.DaysActive(now))
}
