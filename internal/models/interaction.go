package models

import (
	"time"

	"github.com/uptrace/bun"
)

type InteractionKind string

const (
	InteractionLike   InteractionKind = "like"
	InteractionFollow InteractionKind = "follow"
)

// Interaction is one like or follow performed by a user. The evaluation
// engine consumes these both as eligibility variables and as velocity
// signals for fraud scoring.
type Interaction struct {
	bun.BaseModel `bun:"table:interaction"`
	ID            int64           `bun:"id,pk,autoincrement" json:"id"`
	UserID        int64           `bun:"user_id" json:"user_id"`
	Kind          InteractionKind `bun:"kind" json:"kind"`
	TargetID      int64           `bun:"target_id" json:"target_id"`
	CreatedAt     time.Time       `bun:"created_at,default:current_timestamp" json:"created_at"`
}
