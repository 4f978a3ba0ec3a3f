package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/wellmeet-pipeline/internal/model"
	"github.com/xxxsen/wellmeet-pipeline/internal/pkg/dbutil"
	appErr "github.com/xxxsen/wellmeet-pipeline/internal/pkg/errors"
)

type VectorRepo struct {
	db *sql.DB
}

func NewVectorRepo(db *sql.DB) *VectorRepo {
	return &VectorRepo{db: db}
}

func (r *VectorRepo) DB() *sql.DB {
	return r.db
}

// InsertIgnore writes a restaurant vector row; a row with the same place_id
// wins and inserted is false.
func (r *VectorRepo) InsertIgnore(ctx context.Context, exec dbutil.Execer, v *model.RestaurantVector) (bool, error) {
	data := map[string]interface{}{
		"id":               v.ID,
		"place_id":         v.PlaceID,
		"companion_vector": v.CompanionVector,
		"food_vector":      v.FoodVector,
		"purpose_vector":   v.PurposeVector,
		"vibe_vector":      v.VibeVector,
		"latitude":         v.Latitude,
		"longitude":        v.Longitude,
	}
	sqlStr, args, err := builder.BuildInsert("restaurant_vector", []map[string]interface{}{data})
	if err != nil {
		return false, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr+" ON CONFLICT (place_id) DO NOTHING", args)
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

func (r *VectorRepo) FindIDByPlaceID(ctx context.Context, placeID string) (string, error) {
	where := map[string]interface{}{"place_id": placeID}
	sqlStr, args, err := builder.BuildSelect("restaurant_vector", where, []string{"id"})
	if err != nil {
		return "", err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var id string
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErr.ErrNotFound
		}
		return "", err
	}
	return id, nil
}

// FindIDsByPlaceIDs maps each known place id to its restaurant id. Unknown
// place ids are absent from the result.
func (r *VectorRepo) FindIDsByPlaceIDs(ctx context.Context, placeIDs []string) (map[string]string, error) {
	result := make(map[string]string, len(placeIDs))
	if len(placeIDs) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In("SELECT id, place_id FROM restaurant_vector WHERE place_id IN (?)", placeIDs)
	if err != nil {
		return nil, err
	}
	query, args = dbutil.Finalize(query, args)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, placeID string
		if err := rows.Scan(&id, &placeID); err != nil {
			return nil, err
		}
		result[placeID] = id
	}
	return result, rows.Err()
}
