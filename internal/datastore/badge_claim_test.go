package datastore

import (
	"database/sql"
	"testing"

	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// renderDB builds a dialect-only handle; queries are rendered, never executed.
func renderDB() *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN("postgres://localhost:5432/inkwell?sslmode=disable")))
	return bun.NewDB(sqldb, pgdialect.New())
}

func TestApplyClaimRewardsGuard(t *testing.T) {
	db := renderDB()

	claim := &models.BadgeClaim{
		ID:      "claim-1",
		BadgeID: 7,
		UserID:  42,
		Status:  models.ClaimStatusApproved,
	}

	q := applyClaimRewardsQuery(db, claim).String()

	// the stamp is taken at most once, the guard is what makes a re-run a no-op
	assert.Contains(t, q, `UPDATE "badge_claim"`)
	assert.Contains(t, q, `rewards->>'applied_at' IS NULL`)
	assert.Contains(t, q, `"id" = 'claim-1'`)
	assert.Contains(t, q, `"rewards" = `)
	assert.Contains(t, q, `"status" = `)
	assert.NotContains(t, q, `"xp"`)
}
