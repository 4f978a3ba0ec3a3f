package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/wellmeet-pipeline/internal/ai"
	"github.com/xxxsen/wellmeet-pipeline/internal/artifact"
	"github.com/xxxsen/wellmeet-pipeline/internal/config"
	"github.com/xxxsen/wellmeet-pipeline/internal/model"
	"github.com/xxxsen/wellmeet-pipeline/internal/objstore"
	appErr "github.com/xxxsen/wellmeet-pipeline/internal/pkg/errors"
	"github.com/xxxsen/wellmeet-pipeline/internal/queue"
)

const (
	chunkSummaryMaxTokens = 500
	finalSummaryMaxTokens = 800
	keywordMaxTokens      = 300
)

// RestaurantEmbeddingService condenses all reviews of one restaurant into a
// summary, extracts its attribute keywords and embeds them synchronously.
type RestaurantEmbeddingService struct {
	store  objstore.Store
	client ai.CompletionClient
	sender queue.Sender
	layout config.LayoutConfig
	aiCfg  config.AIConfig
	enrich config.EnrichConfig
	now    func() time.Time
}

func NewRestaurantEmbeddingService(store objstore.Store, client ai.CompletionClient, sender queue.Sender, layout config.LayoutConfig, aiCfg config.AIConfig, enrich config.EnrichConfig) *RestaurantEmbeddingService {
	if enrich.ChunkSize <= 0 {
		enrich.ChunkSize = 20
	}
	if enrich.Concurrency <= 0 {
		enrich.Concurrency = 1
	}
	return &RestaurantEmbeddingService{
		store:  store,
		client: client,
		sender: sender,
		layout: layout,
		aiCfg:  aiCfg,
		enrich: enrich,
		now:    time.Now,
	}
}

type RestaurantEmbeddingResult struct {
	PlaceID      string `json:"placeId"`
	S3Key        string `json:"s3Key"`
	ArtifactKey  string `json:"artifactKey"`
	TotalReviews int    `json:"totalReviews"`
	Chunks       int    `json:"chunks"`
	Embedded     int    `json:"embedded"`
	MessageID    string `json:"messageId,omitempty"`
}

// Enrich reads the restaurant document named by msg from the review prefix
// and writes {name}_embedding.json under the vector prefix. The returned
// S3Key is relative to that prefix, as the persisters expect it.
func (s *RestaurantEmbeddingService) Enrich(ctx context.Context, msg model.QueueMessage) (*RestaurantEmbeddingResult, error) {
	key := strings.TrimSpace(msg.Key())
	if key == "" {
		return nil, fmt.Errorf("s3Key is required: %w", appErr.ErrInvalid)
	}
	if !strings.HasSuffix(key, ".json") {
		key += ".json"
	}
	logger := logutil.GetLogger(ctx).With(zap.String("key", key))

	doc, err := s.loadSource(ctx, objstore.Location{Key: objstore.Join(s.layout.ReviewDir, key)})
	if err != nil {
		logger.Error("load restaurant reviews failed", zap.Error(err))
		return nil, err
	}
	var reviews []model.Review
	for _, review := range doc.Reviews {
		if strings.TrimSpace(review.Content) != "" {
			reviews = append(reviews, review)
		}
	}
	if len(reviews) == 0 {
		return nil, fmt.Errorf("%s has no reviews with content: %w", key, appErr.ErrInvalid)
	}
	if doc.PlaceID == "" {
		doc.PlaceID = reviews[0].PlaceID
	}
	if strings.TrimSpace(doc.PlaceID) == "" {
		return nil, fmt.Errorf("%s has no placeId: %w", key, appErr.ErrInvalid)
	}

	chunks := chunkReviews(reviews, s.enrich.ChunkSize)
	summaries, err := s.summarizeChunks(ctx, chunks)
	if err != nil {
		logger.Error("summarize review chunks failed", zap.Int("chunks", len(chunks)), zap.Error(err))
		return nil, err
	}
	summary, err := s.client.Complete(ctx, ai.CompletionRequest{
		Model:       s.aiCfg.ChatModel,
		System:      ai.FinalSummaryPrompt,
		User:        "다음 요약들을 종합하여 하나의 완전한 요약을 만들어주세요:\n\n" + strings.Join(summaries, "\n\n"),
		MaxTokens:   finalSummaryMaxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		logger.Error("final summary failed", zap.Error(err))
		return nil, fmt.Errorf("final summary: %w", err)
	}
	keywords, err := s.extractKeywords(ctx, summary)
	if err != nil {
		logger.Error("keyword extraction failed", zap.Error(err))
		return nil, err
	}
	embeddings, embedded, err := s.embedKeywords(ctx, keywords)
	if err != nil {
		logger.Error("embed keywords failed", zap.Error(err))
		return nil, err
	}

	doc.Summary = summary
	doc.Keywords = keywords
	doc.Embeddings = embeddings
	doc.TotalReviews = len(doc.Reviews)
	doc.ProcessedAt = s.now().UTC().Format(time.RFC3339)

	name := strings.TrimSuffix(key, ".json") + "_embedding.json"
	loc := objstore.Location{Key: objstore.Join(s.layout.VectorDir, name)}
	if _, err := artifact.WriteJSON(ctx, s.store, loc, doc); err != nil {
		logger.Error("write restaurant artifact failed", zap.Error(err))
		return nil, err
	}
	result := &RestaurantEmbeddingResult{
		PlaceID:      doc.PlaceID,
		S3Key:        name,
		ArtifactKey:  loc.Key,
		TotalReviews: doc.TotalReviews,
		Chunks:       len(chunks),
		Embedded:     embedded,
	}
	if s.sender != nil && s.enrich.NotifyQueueURL != "" {
		body, err := json.Marshal(model.QueueMessage{S3Key: name})
		if err != nil {
			return nil, err
		}
		id, err := s.sender.Send(ctx, s.enrich.NotifyQueueURL, body)
		if err != nil {
			logger.Error("notify restaurant save failed", zap.Error(err))
			return nil, fmt.Errorf("notify %s: %w", name, err)
		}
		result.MessageID = id
	}
	logger.Info("restaurant enriched",
		zap.String("place_id", doc.PlaceID),
		zap.Int("reviews", result.TotalReviews),
		zap.Int("chunks", result.Chunks),
		zap.Int("embedded", embedded),
		zap.String("artifact", loc.Key),
	)
	return result, nil
}

// loadSource accepts either a restaurant document with a reviews field or a
// bare review list.
func (s *RestaurantEmbeddingService) loadSource(ctx context.Context, loc objstore.Location) (*model.RestaurantArtifact, error) {
	data, err := artifact.ReadBytes(ctx, s.store, loc)
	if err != nil {
		return nil, err
	}
	doc := &model.RestaurantArtifact{}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &doc.Reviews); err != nil {
			return nil, fmt.Errorf("decode %s: %w", loc, err)
		}
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", loc, err)
	}
	return doc, nil
}

func (s *RestaurantEmbeddingService) summarizeChunks(ctx context.Context, chunks [][]model.Review) ([]string, error) {
	summaries := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.enrich.Concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			lines := make([]string, 0, len(chunk))
			for _, review := range chunk {
				lines = append(lines, fmt.Sprintf("리뷰 %s: %s", review.ID, review.Content))
			}
			summary, err := s.client.Complete(gctx, ai.CompletionRequest{
				Model:       s.aiCfg.ChatModel,
				System:      ai.ChunkSummaryPrompt,
				User:        "다음 리뷰들을 요약해주세요:\n\n" + strings.Join(lines, "\n\n"),
				MaxTokens:   chunkSummaryMaxTokens,
				Temperature: 0.3,
			})
			if err != nil {
				return fmt.Errorf("summarize chunk %d: %w", i+1, err)
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// extractKeywords returns every attribute, empty when the model left it out
// or answered with something that is not a JSON object.
func (s *RestaurantEmbeddingService) extractKeywords(ctx context.Context, summary string) (map[string]string, error) {
	content, err := s.client.Complete(ctx, ai.CompletionRequest{
		Model:       s.aiCfg.ChatModel,
		System:      ai.KeywordExtractionPrompt,
		User:        summary,
		MaxTokens:   keywordMaxTokens,
		Temperature: 0.1,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("extract keywords: %w", err)
	}
	keywords, err := model.DecodeCategories([]byte(content))
	if err != nil {
		logutil.GetLogger(ctx).Warn("malformed keyword response, using defaults", zap.Error(err))
		return model.DefaultCategories(), nil
	}
	return keywords, nil
}

// embedKeywords embeds the non-blank keywords in one request. Blank ones map
// to an empty vector.
func (s *RestaurantEmbeddingService) embedKeywords(ctx context.Context, keywords map[string]string) (map[string][]float32, int, error) {
	out := make(map[string][]float32, len(model.Attributes))
	var attrs, inputs []string
	for _, attr := range model.Attributes {
		out[attr] = []float32{}
		if v := strings.TrimSpace(keywords[attr]); v != "" {
			attrs = append(attrs, attr)
			inputs = append(inputs, v)
		}
	}
	if len(inputs) == 0 {
		return out, 0, nil
	}
	vectors, err := s.client.Embed(ctx, s.aiCfg.EmbeddingModel, inputs, s.aiCfg.EmbeddingDimensions)
	if err != nil {
		return nil, 0, fmt.Errorf("embed keywords: %w", err)
	}
	embedded := 0
	for i, attr := range attrs {
		if i < len(vectors) && len(vectors[i]) > 0 {
			out[attr] = vectors[i]
			embedded++
		}
	}
	return out, embedded, nil
}

func chunkReviews(reviews []model.Review, size int) [][]model.Review {
	var chunks [][]model.Review
	for start := 0; start < len(reviews); start += size {
		end := start + size
		if end > len(reviews) {
			end = len(reviews)
		}
		chunks = append(chunks, reviews[start:end])
	}
	return chunks
}
