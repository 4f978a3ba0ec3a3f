package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/wellmeet-pipeline/internal/ai"
	"github.com/xxxsen/wellmeet-pipeline/internal/artifact"
	"github.com/xxxsen/wellmeet-pipeline/internal/config"
	"github.com/xxxsen/wellmeet-pipeline/internal/correlation"
	"github.com/xxxsen/wellmeet-pipeline/internal/model"
	"github.com/xxxsen/wellmeet-pipeline/internal/objstore"
	appErr "github.com/xxxsen/wellmeet-pipeline/internal/pkg/errors"
)

type CategoryService struct {
	store     objstore.Store
	runner    *batchRunner
	embedding *EmbeddingService
	layout    config.LayoutConfig
	chatModel string
	codec     *correlation.Codec
}

func NewCategoryService(store objstore.Store, client ai.BatchClient, embedding *EmbeddingService, layout config.LayoutConfig, aiCfg config.AIConfig) *CategoryService {
	return &CategoryService{
		store:     store,
		runner:    &batchRunner{client: client, window: aiCfg.CompletionWindow},
		embedding: embedding,
		layout:    layout,
		chatModel: aiCfg.ChatModel,
		codec:     correlation.ExtractionCodec(),
	}
}

func (s *CategoryService) reviewLocation(key string) objstore.Location {
	return objstore.Location{Key: objstore.Join(s.layout.ReviewDir, key+".json")}
}

func (s *CategoryService) artifactLocation(key string) objstore.Location {
	return objstore.Location{Key: objstore.Join(s.layout.CategoryDir, key+".json")}
}

// SubmitExtraction creates one chat completion batch covering every usable
// review stored under key.
func (s *CategoryService) SubmitExtraction(ctx context.Context, key string) (*StageResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("key", key))
	reviews, err := s.loadReviews(ctx, s.reviewLocation(key))
	if err != nil {
		logger.Error("load reviews failed", zap.Error(err))
		return nil, err
	}
	lines := make([]ai.ChatRequestLine, 0, len(reviews))
	for _, review := range reviews {
		if review.ID == "" || strings.TrimSpace(review.Content) == "" {
			logger.Warn("skip review without id or content", zap.String("review_id", review.ID))
			continue
		}
		customID, err := s.codec.Encode(s.codec.New(review.ID, ""))
		if err != nil {
			return nil, err
		}
		lines = append(lines, ai.NewExtractionRequest(customID, s.chatModel, review.Content))
	}
	job, err := submitLines(ctx, s.runner, "category_"+sanitizeName(key)+".jsonl", model.EndpointChatCompletions, lines)
	if err != nil {
		logger.Error("submit category batch failed", zap.Error(err))
		return nil, err
	}
	logger.Info("category batch submitted", zap.String("batch_id", job.ID), zap.Int("requests", len(lines)))
	return &StageResult{BatchID: job.ID, Count: len(lines)}, nil
}

// CheckAndMerge polls the extraction batch. Once it completed the categories
// are merged into the reviews, the result is stored and the embedding batch
// for it is submitted.
func (s *CategoryService) CheckAndMerge(ctx context.Context, batchID, key string) (*Outcome, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("batch_id", batchID), zap.String("key", key))
	job, state, err := s.runner.poll(ctx, batchID)
	if err != nil {
		logger.Error("category batch not usable", zap.Error(err))
		return nil, err
	}
	if state == StatePending {
		logger.Info("category batch still running", zap.String("status", string(job.Status)))
		return pendingOutcome(job), nil
	}
	reviews, err := s.loadReviews(ctx, s.reviewLocation(key))
	if err != nil {
		return nil, err
	}
	results := make(map[string]map[string]string, len(reviews))
	err = s.runner.eachResult(ctx, job, func(line model.BatchResultLine) error {
		k, err := s.codec.Decode(line.CustomID)
		if err != nil {
			logger.Warn("skip result with bad custom id", zap.String("custom_id", line.CustomID), zap.Error(err))
			return nil
		}
		content, err := ai.DecodeChatContent(line.Response.Body)
		if err != nil {
			logger.Warn("skip undecodable chat result", zap.String("custom_id", line.CustomID), zap.Error(err))
			return nil
		}
		categories, err := model.DecodeCategories([]byte(content))
		if err != nil {
			logger.Warn("skip non-json category content", zap.String("custom_id", line.CustomID), zap.Error(err))
			return nil
		}
		results[k.RecordID] = categories
		return nil
	})
	if err != nil {
		return nil, err
	}
	matched := 0
	for i := range reviews {
		categories, ok := results[reviews[i].ID]
		if !ok {
			categories = model.DefaultCategories()
		} else {
			matched++
		}
		reviews[i].Categories = categories
	}
	loc := s.artifactLocation(key)
	if _, err := artifact.WriteJSON(ctx, s.store, loc, reviews); err != nil {
		logger.Error("write category artifact failed", zap.Error(err))
		return nil, err
	}
	logger.Info("category merge finished", zap.Int("reviews", len(reviews)), zap.Int("matched", matched))

	out := completedOutcome(job)
	out.ArtifactKey = loc.Key
	out.Count = len(reviews)
	if s.embedding == nil {
		return out, nil
	}
	next, err := s.embedding.SubmitEmbedding(ctx, reviews)
	switch {
	case errors.Is(err, appErr.ErrEmptyBatch):
		logger.Warn("no category values to embed")
	case err != nil:
		return nil, fmt.Errorf("submit embedding batch: %w", err)
	default:
		out.NextBatchID = next.BatchID
	}
	return out, nil
}

func (s *CategoryService) loadReviews(ctx context.Context, loc objstore.Location) ([]model.Review, error) {
	var reviews []model.Review
	if err := artifact.Read(ctx, s.store, loc, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

func sanitizeName(key string) string {
	return strings.NewReplacer("/", "-", " ", "-").Replace(key)
}
