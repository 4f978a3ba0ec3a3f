package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/wellmeet-pipeline/internal/ai"
	"github.com/xxxsen/wellmeet-pipeline/internal/artifact"
	"github.com/xxxsen/wellmeet-pipeline/internal/config"
	"github.com/xxxsen/wellmeet-pipeline/internal/correlation"
	"github.com/xxxsen/wellmeet-pipeline/internal/model"
	"github.com/xxxsen/wellmeet-pipeline/internal/objstore"
)

type EmbeddingService struct {
	store      objstore.Store
	runner     *batchRunner
	layout     config.LayoutConfig
	model      string
	dimensions int
	codec      *correlation.Codec
}

func NewEmbeddingService(store objstore.Store, client ai.BatchClient, layout config.LayoutConfig, aiCfg config.AIConfig) *EmbeddingService {
	return &EmbeddingService{
		store:      store,
		runner:     &batchRunner{client: client, window: aiCfg.CompletionWindow},
		layout:     layout,
		model:      aiCfg.EmbeddingModel,
		dimensions: aiCfg.EmbeddingDimensions,
		codec:      correlation.EmbeddingCodec(),
	}
}

func (s *EmbeddingService) categoryLocation(key string) objstore.Location {
	return objstore.Location{Key: objstore.Join(s.layout.CategoryDir, key+".json")}
}

func (s *EmbeddingService) artifactLocation(key string) objstore.Location {
	return objstore.Location{Key: objstore.Join(s.layout.EmbeddingDir, key+".json.gz")}
}

// SubmitEmbedding creates one embedding request per non-blank category value.
func (s *EmbeddingService) SubmitEmbedding(ctx context.Context, reviews []model.Review) (*StageResult, error) {
	logger := logutil.GetLogger(ctx)
	var lines []ai.EmbeddingRequestLine
	for _, review := range reviews {
		if review.ID == "" {
			continue
		}
		for _, attr := range model.Attributes {
			value := strings.TrimSpace(review.Categories[attr])
			if value == "" {
				continue
			}
			customID, err := s.codec.Encode(s.codec.New(review.ID, attr))
			if err != nil {
				return nil, err
			}
			lines = append(lines, ai.NewEmbeddingRequest(customID, s.model, value, s.dimensions))
		}
	}
	job, err := submitLines(ctx, s.runner, "embedding_"+uuid.NewString()+".jsonl", model.EndpointEmbeddings, lines)
	if err != nil {
		logger.Error("submit embedding batch failed", zap.Error(err))
		return nil, err
	}
	logger.Info("embedding batch submitted", zap.String("batch_id", job.ID), zap.Int("requests", len(lines)))
	return &StageResult{BatchID: job.ID, Count: len(lines)}, nil
}

// SubmitEmbeddingForKey submits the embedding batch for a stored category
// artifact.
func (s *EmbeddingService) SubmitEmbeddingForKey(ctx context.Context, key string) (*StageResult, error) {
	var reviews []model.Review
	if err := artifact.Read(ctx, s.store, s.categoryLocation(key), &reviews); err != nil {
		return nil, err
	}
	return s.SubmitEmbedding(ctx, reviews)
}

// CheckAndMerge polls the embedding batch and, once complete, attaches the
// vectors to the categorized reviews and stores them gzip compressed.
func (s *EmbeddingService) CheckAndMerge(ctx context.Context, batchID, key string) (*Outcome, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("batch_id", batchID), zap.String("key", key))
	job, state, err := s.runner.poll(ctx, batchID)
	if err != nil {
		logger.Error("embedding batch not usable", zap.Error(err))
		return nil, err
	}
	if state == StatePending {
		logger.Info("embedding batch still running", zap.String("status", string(job.Status)))
		return pendingOutcome(job), nil
	}
	var reviews []model.Review
	if err := artifact.Read(ctx, s.store, s.categoryLocation(key), &reviews); err != nil {
		return nil, err
	}
	vectors := make(map[string]map[string][]float32, len(reviews))
	err = s.runner.eachResult(ctx, job, func(line model.BatchResultLine) error {
		k, err := s.codec.Decode(line.CustomID)
		if err != nil || !model.IsAttribute(k.Attribute) {
			logger.Warn("skip result with bad custom id", zap.String("custom_id", line.CustomID), zap.Error(err))
			return nil
		}
		embedding, err := ai.DecodeEmbedding(line.Response.Body)
		if err != nil {
			logger.Warn("skip undecodable embedding result", zap.String("custom_id", line.CustomID), zap.Error(err))
			return nil
		}
		if vectors[k.RecordID] == nil {
			vectors[k.RecordID] = make(map[string][]float32, len(model.Attributes))
		}
		vectors[k.RecordID][k.Attribute] = embedding
		return nil
	})
	if err != nil {
		return nil, err
	}
	attached := 0
	for i := range reviews {
		embeddings, ok := vectors[reviews[i].ID]
		if !ok {
			embeddings = map[string][]float32{}
		}
		attached += len(embeddings)
		reviews[i].Embeddings = embeddings
	}
	loc := s.artifactLocation(key)
	raw, compressed, err := artifact.WriteGzipJSON(ctx, s.store, loc, reviews)
	if err != nil {
		logger.Error("write embedding artifact failed", zap.Error(err))
		return nil, err
	}
	logger.Info("embedding merge finished",
		zap.Int("reviews", len(reviews)),
		zap.Int("embeddings", attached),
		zap.Int("raw_bytes", raw),
		zap.Int("compressed_bytes", compressed),
	)
	out := completedOutcome(job)
	out.ArtifactKey = loc.Key
	out.Count = len(reviews)
	out.Embeddings = attached
	return out, nil
}
