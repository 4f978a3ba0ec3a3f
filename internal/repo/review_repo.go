package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/wellmeet-pipeline/internal/model"
	"github.com/xxxsen/wellmeet-pipeline/internal/pkg/dbutil"
)

type ReviewRepo struct {
	db *sql.DB
}

func NewReviewRepo(db *sql.DB) *ReviewRepo {
	return &ReviewRepo{db: db}
}

func (r *ReviewRepo) DB() *sql.DB {
	return r.db
}

// InsertIgnore writes a review keyed by its content hash. A review already
// stored under the same hash is kept as is.
func (r *ReviewRepo) InsertIgnore(ctx context.Context, exec dbutil.Execer, review *model.CrawlingReview) (bool, error) {
	if exec == nil {
		exec = r.db
	}
	data := map[string]interface{}{
		"hash":             review.Hash,
		"content":          review.Content,
		"restaurant_id":    review.RestaurantID,
		"vibe_vector":      review.VibeVector,
		"food_vector":      review.FoodVector,
		"companion_vector": review.CompanionVector,
		"purpose_vector":   review.PurposeVector,
	}
	sqlStr, args, err := builder.BuildInsert("crawling_review", []map[string]interface{}{data})
	if err != nil {
		return false, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr+" ON CONFLICT (hash) DO NOTHING", args)
	res, err := exec.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *ReviewRepo) CountByRestaurant(ctx context.Context, restaurantID string) (int, error) {
	sqlStr, args := dbutil.Finalize("SELECT COUNT(*) FROM crawling_review WHERE restaurant_id=?", []interface{}{restaurantID})
	var count int
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
