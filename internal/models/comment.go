package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Comment struct {
	bun.BaseModel `bun:"table:comment"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	BlogID        int64     `bun:"blog_id" json:"blog_id"`
	AuthorID      int64     `bun:"author_id" json:"author_id"`
	Body          string    `bun:"body" json:"body"`
	LikeCount     int       `bun:"like_count" json:"like_count"`
	CreatedAt     time.Time `bun:"created_at,default:current_timestamp" json:"created_at"`
}
