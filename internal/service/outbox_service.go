package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/wellmeet-pipeline/internal/model"
	"github.com/xxxsen/wellmeet-pipeline/internal/queue"
	"github.com/xxxsen/wellmeet-pipeline/internal/repo"
)

type OutboxService struct {
	outbox    *repo.OutboxRepo
	sender    queue.Sender
	queueURL  string
	batchSize int
}

func NewOutboxService(outbox *repo.OutboxRepo, sender queue.Sender, queueURL string, batchSize int) *OutboxService {
	return &OutboxService{outbox: outbox, sender: sender, queueURL: queueURL, batchSize: batchSize}
}

type RelayResult struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

// Relay forwards unprocessed outbox rows to the queue. A row is marked
// processed only after its message was accepted, so a failed row is retried
// on the next run.
func (s *OutboxService) Relay(ctx context.Context) (*RelayResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("queue_url", s.queueURL))
	rows, err := s.outbox.ListUnprocessed(ctx, s.batchSize)
	if err != nil {
		logger.Error("list outbox failed", zap.Error(err))
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	result := &RelayResult{}
	for _, row := range rows {
		rowLogger := logger.With(zap.Int64("outbox_id", row.ID), zap.String("restaurant_id", row.RestaurantID))
		body, err := json.Marshal(model.QueueMessage{S3Key: row.Payload, RestaurantID: row.RestaurantID})
		if err != nil {
			result.Errors++
			rowLogger.Error("encode outbox message failed", zap.Error(err))
			continue
		}
		if _, err := s.sender.Send(ctx, s.queueURL, body); err != nil {
			result.Errors++
			rowLogger.Error("send outbox message failed", zap.Error(err))
			continue
		}
		if err := s.outbox.MarkProcessed(ctx, row.ID); err != nil {
			result.Errors++
			rowLogger.Error("mark outbox processed failed", zap.Error(err))
			continue
		}
		result.Processed++
	}
	logger.Info("outbox relay finished", zap.Int("processed", result.Processed), zap.Int("errors", result.Errors))
	return result, nil
}
