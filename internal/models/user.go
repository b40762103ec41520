package models

import (
	"math"
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:user"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	Username      string    `bun:"username" json:"username"`
	Email         string    `bun:"email" json:"email"`
	Country       string    `bun:"country" json:"country"`
	XP            int       `bun:"xp" json:"xp"`
	Level         int       `bun:"level" json:"level"`
	Badges        []int64   `bun:"badges,type:jsonb" json:"badges"`
	FollowerCount int       `bun:"follower_count" json:"follower_count"`
	CreatedAt     time.Time `bun:"created_at,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at" json:"updated_at"`
}

func (u *User) HasBadge(badgeID int64) bool {
	for _, id := range u.Badges {
		if id == badgeID {
			return true
		}
	}
	return false
}

// GrantBadge adds the badge with set semantics and reports whether the set
// changed. Callers rely on the false return to keep reward grants idempotent.
func (u *User) GrantBadge(badgeID int64) bool {
	if u.HasBadge(badgeID) {
		return false
	}
	u.Badges = append(u.Badges, badgeID)
	return true
}

func (u *User) DaysActive(now time.Time) int {
	if u.CreatedAt.IsZero() || now.Before(u.CreatedAt) {
		return 0
	}
	return int(now.Sub(u.CreatedAt).Hours() / 24)
}

// LevelForXP maps accumulated XP to a level: floor(sqrt(xp/100)) + 1.
// Level 1 covers 0-99 XP, level 2 starts at 100, level 3 at 400.
func LevelForXP(xp int) int {
	if xp <= 0 {
		return 1
	}
	return int(math.Sqrt(float64(xp)/100)) + 1
}

// UserFromAuth only use in middleware
type UserFromAuth struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}
