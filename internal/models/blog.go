package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BlogStatus string

const (
	BlogStatusDraft     BlogStatus = "draft"
	BlogStatusPublished BlogStatus = "published"
	BlogStatusArchived  BlogStatus = "archived"
)

type Blog struct {
	bun.BaseModel `bun:"table:blog"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id"`
	AuthorID      int64      `bun:"author_id" json:"author_id"`
	SeriesID      *int64     `bun:"series_id" json:"series_id,omitempty"`
	Title         string     `bun:"title" json:"title"`
	Tags          []string   `bun:"tags,type:jsonb" json:"tags"`
	Status        BlogStatus `bun:"status" json:"status"`
	LikeCount     int        `bun:"like_count" json:"like_count"`
	ViewCount     int        `bun:"view_count" json:"view_count"`
	WordCount     int        `bun:"word_count" json:"word_count"`
	PublishedAt   *time.Time `bun:"published_at" json:"published_at,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time  `bun:"updated_at" json:"updated_at"`
}
