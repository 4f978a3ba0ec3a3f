package repo

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xxxsen/wellmeet-pipeline/internal/model"
	appErr "github.com/xxxsen/wellmeet-pipeline/internal/pkg/errors"
)

type RestaurantRepo struct {
	db *gorm.DB
}

func NewRestaurantRepo(db *gorm.DB) *RestaurantRepo {
	return &RestaurantRepo{db: db}
}

// InsertIgnore inserts the restaurant unless its place_id already exists.
// The existing row is left untouched; inserted reports which case happened.
func (r *RestaurantRepo) InsertIgnore(ctx context.Context, item *model.Restaurant) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.Insert{Modifier: "IGNORE"}).Create(item)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *RestaurantRepo) FindIDByPlaceID(ctx context.Context, placeID string) (string, error) {
	var item model.Restaurant
	res := r.db.WithContext(ctx).Select("id").Where("place_id = ?", placeID).Limit(1).Find(&item)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", fmt.Errorf("restaurant %s: %w", placeID, appErr.ErrNotFound)
	}
	return item.ID, nil
}
