package datastore

import (
	"context"
	"fmt"
	"time"

	"inkwell/internal/models"

	"github.com/uptrace/bun"
)

func CreateTableBlog(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.Blog)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.Blog)(nil)).Index("index_blog_author").IfNotExists().Column("author_id").Exec(ctx)
	return err
}

func CreateTableComment(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.Comment)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.Comment)(nil)).Index("index_comment_author").IfNotExists().Column("author_id").Exec(ctx)
	return err
}

func CreateTableSeries(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.Series)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.Series)(nil)).Index("index_series_author").IfNotExists().Column("author_id").Exec(ctx)
	return err
}

func CreateTableInteraction(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.Interaction)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.Interaction)(nil)).Index("index_interaction_user").IfNotExists().Column("user_id", "kind").Exec(ctx)
	return err
}

// Column whitelists keep admin-authored variable definitions from touching
// columns the resolver has no business reading.
var blogColumns = map[string]bool{
	"id": true, "series_id": true, "status": true,
	"like_count": true, "view_count": true, "word_count": true, "tags": true,
}

var commentColumns = map[string]bool{
	"id": true, "blog_id": true, "like_count": true,
}

var seriesColumns = map[string]bool{
	"id": true, "blog_count": true, "completed": true,
}

var interactionColumns = map[string]bool{
	"id": true, "kind": true, "target_id": true,
}

// BlogStore and its siblings are the per-collection ports consumed by the
// variable resolver.
type BlogStore struct {
	db *bun.DB
}

func NewBlogStore(db *bun.DB) *BlogStore {
	return &BlogStore{db}
}

func (s *BlogStore) Aggregate(ctx context.Context, userID int64, field string, agg models.Aggregation, since *time.Time, filter map[string]any) (float64, error) {
	return aggregate(ctx, s.db, (*models.Blog)(nil), "author_id", blogColumns, userID, field, agg, since, filter)
}

func (s *BlogStore) CountPublishedByAuthor(ctx context.Context, userID int64) (int, error) {
	return s.db.NewSelect().Model((*models.Blog)(nil)).
		Where("author_id = ?", userID).
		Where("status = ?", models.BlogStatusPublished).
		Count(ctx)
}

func (s *BlogStore) SumLikesByAuthor(ctx context.Context, userID int64) (int, error) {
	var total int
	err := s.db.NewSelect().Model((*models.Blog)(nil)).
		ColumnExpr("coalesce(sum(like_count), 0)").
		Where("author_id = ?", userID).
		Scan(ctx, &total)
	return total, err
}

type CommentStore struct {
	db *bun.DB
}

func NewCommentStore(db *bun.DB) *CommentStore {
	return &CommentStore{db}
}

func (s *CommentStore) Aggregate(ctx context.Context, userID int64, field string, agg models.Aggregation, since *time.Time, filter map[string]any) (float64, error) {
	return aggregate(ctx, s.db, (*models.Comment)(nil), "author_id", commentColumns, userID, field, agg, since, filter)
}

func (s *CommentStore) CountByAuthor(ctx context.Context, userID int64) (int, error) {
	return s.db.NewSelect().Model((*models.Comment)(nil)).Where("author_id = ?", userID).Count(ctx)
}

type SeriesStore struct {
	db *bun.DB
}

func NewSeriesStore(db *bun.DB) *SeriesStore {
	return &SeriesStore{db}
}

func (s *SeriesStore) Aggregate(ctx context.Context, userID int64, field string, agg models.Aggregation, since *time.Time, filter map[string]any) (float64, error) {
	return aggregate(ctx, s.db, (*models.Series)(nil), "author_id", seriesColumns, userID, field, agg, since, filter)
}

type InteractionStore struct {
	db *bun.DB
}

func NewInteractionStore(db *bun.DB) *InteractionStore {
	return &InteractionStore{db}
}

func (s *InteractionStore) Aggregate(ctx context.Context, userID int64, field string, agg models.Aggregation, since *time.Time, filter map[string]any) (float64, error) {
	return aggregate(ctx, s.db, (*models.Interaction)(nil), "user_id", interactionColumns, userID, field, agg, since, filter)
}

func aggregate(ctx context.Context, db *bun.DB, model any, ownerColumn string, allowed map[string]bool, userID int64, field string, agg models.Aggregation, since *time.Time, filter map[string]any) (float64, error) {
	expr, err := aggregationExpr(agg, field, allowed)
	if err != nil {
		return 0, err
	}

	q := db.NewSelect().Model(model).
		ColumnExpr(expr).
		Where("? = ?", bun.Ident(ownerColumn), userID)

	if since != nil {
		q = q.Where("created_at >= ?", *since)
	}

	for k, v := range filter {
		if !allowed[k] {
			return 0, fmt.Errorf("filter column not allowed: %s", k)
		}
		q = q.Where("? = ?", bun.Ident(k), v)
	}

	var value float64
	err = q.Scan(ctx, &value)
	if err != nil {
		return 0, err
	}
	return value, nil
}

func aggregationExpr(agg models.Aggregation, field string, allowed map[string]bool) (string, error) {
	if agg == models.AggregationCount {
		return "coalesce(count(*), 0)::float8", nil
	}

	if !allowed[field] {
		return "", fmt.Errorf("column not allowed: %s", field)
	}

	switch agg {
	case models.AggregationSum:
		return fmt.Sprintf("coalesce(sum(%s), 0)::float8", field), nil
	case models.AggregationAvg:
		return fmt.Sprintf("coalesce(avg(%s), 0)::float8", field), nil
	case models.AggregationMin:
		return fmt.Sprintf("coalesce(min(%s), 0)::float8", field), nil
	case models.AggregationMax:
		return fmt.Sprintf("coalesce(max(%s), 0)::float8", field), nil
	case models.AggregationDistinct:
		return fmt.Sprintf("coalesce(count(distinct %s), 0)::float8", field), nil
	default:
		return "", fmt.Errorf("unknown aggregation: %s", agg)
	}
}
