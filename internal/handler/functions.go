package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/wellmeet-pipeline/internal/model"
	appErr "github.com/xxxsen/wellmeet-pipeline/internal/pkg/errors"
	"github.com/xxxsen/wellmeet-pipeline/internal/service"
)

const (
	FuncDispatch        = "dispatch"
	FuncCategorySubmit  = "category-submit"
	FuncCategoryPoll    = "category-poll"
	FuncEmbeddingSubmit = "embedding-submit"
	FuncEmbeddingPoll   = "embedding-poll"
	FuncSaveRestaurants = "save-restaurants"
	FuncSaveVector      = "save-vector"
	FuncSaveReviews     = "save-reviews"
	FuncOutboxRelay     = "outbox-relay"

	FuncRestaurantEmbed        = "restaurant-embed"
	FuncSaveRestaurantMetadata = "save-restaurant-metadata"
)

// StageEvent is the payload the orchestrator passes between stages.
type StageEvent struct {
	S3Key   string `json:"S3_KEY"`
	BatchID string `json:"batch_id,omitempty"`
}

// Services holds the stage services a process was able to build. A nil
// service makes its functions report ErrUnavailable.
type Services struct {
	Dispatch   *service.DispatchService
	Category   *service.CategoryService
	Embedding  *service.EmbeddingService
	Restaurant *service.RestaurantEmbeddingService
	Persist    *service.PersistService
	Outbox     *service.OutboxService
}

func NewFunctionRegistry(s Services) *Registry {
	r := NewRegistry()
	r.Register(FuncDispatch, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		if s.Dispatch == nil {
			return nil, unavailable(FuncDispatch)
		}
		var event events.S3Event
		if err := decodeEvent(raw, &event); err != nil {
			return nil, err
		}
		return s.Dispatch.HandleEvent(ctx, event)
	})
	r.Register(FuncCategorySubmit, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		if s.Category == nil {
			return nil, unavailable(FuncCategorySubmit)
		}
		event, err := stageEvent(raw, false)
		if err != nil {
			return nil, err
		}
		return s.Category.SubmitExtraction(ctx, event.S3Key)
	})
	r.Register(FuncCategoryPoll, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		if s.Category == nil {
			return nil, unavailable(FuncCategoryPoll)
		}
		event, err := stageEvent(raw, true)
		if err != nil {
			return nil, err
		}
		return s.Category.CheckAndMerge(ctx, event.BatchID, event.S3Key)
	})
	r.Register(FuncEmbeddingSubmit, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		if s.Embedding == nil {
			return nil, unavailable(FuncEmbeddingSubmit)
		}
		event, err := stageEvent(raw, false)
		if err != nil {
			return nil, err
		}
		return s.Embedding.SubmitEmbeddingForKey(ctx, event.S3Key)
	})
	r.Register(FuncEmbeddingPoll, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		if s.Embedding == nil {
			return nil, unavailable(FuncEmbeddingPoll)
		}
		event, err := stageEvent(raw, true)
		if err != nil {
			return nil, err
		}
		return s.Embedding.CheckAndMerge(ctx, event.BatchID, event.S3Key)
	})
	r.Register(FuncSaveRestaurants, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		if s.Persist == nil {
			return nil, unavailable(FuncSaveRestaurants)
		}
		event, err := stageEvent(raw, false)
		if err != nil {
			return nil, err
		}
		return s.Persist.SaveRestaurants(ctx, event.S3Key)
	})
	r.Register(FuncSaveVector, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		if s.Persist == nil {
			return nil, unavailable(FuncSaveVector)
		}
		return handleQueue(ctx, raw, s.Persist.SaveVector)
	})
	r.Register(FuncSaveRestaurantMetadata, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		if s.Persist == nil {
			return nil, unavailable(FuncSaveRestaurantMetadata)
		}
		return handleQueue(ctx, raw, s.Persist.SaveRestaurantMetadata)
	})
	r.Register(FuncRestaurantEmbed, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		if s.Restaurant == nil {
			return nil, unavailable(FuncRestaurantEmbed)
		}
		return handleQueue(ctx, raw, s.Restaurant.Enrich)
	})
	r.Register(FuncSaveReviews, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		if s.Persist == nil {
			return nil, unavailable(FuncSaveReviews)
		}
		event, err := stageEvent(raw, false)
		if err != nil {
			return nil, err
		}
		return s.Persist.SaveReviews(ctx, event.S3Key)
	})
	r.Register(FuncOutboxRelay, func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		if s.Outbox == nil {
			return nil, unavailable(FuncOutboxRelay)
		}
		return s.Outbox.Relay(ctx)
	})
	return r
}

// handleQueue accepts either a queue event or a bare message. For a queue
// event every record is handled and the failed ones are reported back so
// only they are redelivered.
func handleQueue[T any](ctx context.Context, raw json.RawMessage, handle func(context.Context, model.QueueMessage) (T, error)) (interface{}, error) {
	var envelope struct {
		Records json.RawMessage `json:"Records"`
	}
	if err := decodeEvent(raw, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Records) == 0 {
		var msg model.QueueMessage
		if err := decodeEvent(raw, &msg); err != nil {
			return nil, err
		}
		return handle(ctx, msg)
	}
	var event events.SQSEvent
	if err := decodeEvent(raw, &event); err != nil {
		return nil, err
	}
	resp := events.SQSEventResponse{BatchItemFailures: []events.SQSBatchItemFailure{}}
	for _, record := range event.Records {
		logger := logutil.GetLogger(ctx).With(zap.String("message_id", record.MessageId))
		var msg model.QueueMessage
		if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
			logger.Error("decode queue message failed", zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
			continue
		}
		if _, err := handle(ctx, msg); err != nil {
			logger.Error("handle queue message failed", zap.String("s3_key", msg.Key()), zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return resp, nil
}

func stageEvent(raw json.RawMessage, needBatch bool) (*StageEvent, error) {
	event := &StageEvent{}
	if err := decodeEvent(raw, event); err != nil {
		return nil, err
	}
	event.S3Key = strings.TrimSpace(event.S3Key)
	if event.S3Key == "" {
		return nil, fmt.Errorf("S3_KEY is required: %w", appErr.ErrInvalid)
	}
	if needBatch && strings.TrimSpace(event.BatchID) == "" {
		return nil, fmt.Errorf("batch_id is required: %w", appErr.ErrInvalid)
	}
	return event, nil
}

func decodeEvent(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode event: %w: %w", appErr.ErrInvalid, err)
	}
	return nil
}

func unavailable(name string) error {
	return fmt.Errorf("function %s: %w", name, appErr.ErrUnavailable)
}
