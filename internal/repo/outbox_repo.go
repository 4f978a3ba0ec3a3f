package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/xxxsen/wellmeet-pipeline/internal/model"
)

type OutboxRepo struct {
	db *gorm.DB
}

func NewOutboxRepo(db *gorm.DB) *OutboxRepo {
	return &OutboxRepo{db: db}
}

func (r *OutboxRepo) ListUnprocessed(ctx context.Context, limit int) ([]model.Outbox, error) {
	var rows []model.Outbox
	err := r.db.WithContext(ctx).
		Where("is_processed = ?", false).
		Order("created_at").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *OutboxRepo) MarkProcessed(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.Outbox{}).
		Where("id = ?", id).
		Update("is_processed", true).Error
}
