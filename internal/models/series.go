package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Series struct {
	bun.BaseModel `bun:"table:series"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	AuthorID      int64     `bun:"author_id" json:"author_id"`
	Title         string    `bun:"title" json:"title"`
	BlogCount     int       `bun:"blog_count" json:"blog_count"`
	Completed     bool      `bun:"completed" json:"completed"`
	CreatedAt     time.Time `bun:"created_at,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at" json:"updated_at"`
}
