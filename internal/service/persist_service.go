package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/wellmeet-pipeline/internal/artifact"
	"github.com/xxxsen/wellmeet-pipeline/internal/config"
	"github.com/xxxsen/wellmeet-pipeline/internal/model"
	"github.com/xxxsen/wellmeet-pipeline/internal/objstore"
	"github.com/xxxsen/wellmeet-pipeline/internal/pkg/dbutil"
	appErr "github.com/xxxsen/wellmeet-pipeline/internal/pkg/errors"
	"github.com/xxxsen/wellmeet-pipeline/internal/repo"
)

type PersistService struct {
	store       objstore.Store
	layout      config.LayoutConfig
	restaurants *repo.RestaurantRepo
	vectors     *repo.VectorRepo
	reviews     *repo.ReviewRepo
	dimensions  int
	placeCache  *expirable.LRU[string, string]
	newID       func() string
}

func NewPersistService(store objstore.Store, layout config.LayoutConfig, restaurants *repo.RestaurantRepo, vectors *repo.VectorRepo, reviews *repo.ReviewRepo, dimensions int) *PersistService {
	return &PersistService{
		store:       store,
		layout:      layout,
		restaurants: restaurants,
		vectors:     vectors,
		reviews:     reviews,
		dimensions:  dimensions,
		placeCache:  expirable.NewLRU[string, string](10000, nil, 30*time.Minute),
		newID:       uuid.NewString,
	}
}

type SaveRestaurantsResult struct {
	Saved    int      `json:"saved"`
	Existing int      `json:"existing"`
	Skipped  int      `json:"skipped"`
	PlaceIDs []string `json:"placeIds"`
}

// SaveRestaurants inserts the crawled restaurants stored under key. A place
// already in the database keeps its row.
func (s *PersistService) SaveRestaurants(ctx context.Context, key string) (*SaveRestaurantsResult, error) {
	if s.restaurants == nil {
		return nil, fmt.Errorf("restaurant database: %w", appErr.ErrUnavailable)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("key", key))
	var items []model.Restaurant
	loc := objstore.Location{Key: objstore.Join(s.layout.RestaurantDir, key+".json")}
	if err := artifact.Read(ctx, s.store, loc, &items); err != nil {
		logger.Error("load restaurants failed", zap.Error(err))
		return nil, err
	}
	result := &SaveRestaurantsResult{PlaceIDs: []string{}}
	for i := range items {
		item := &items[i]
		if strings.TrimSpace(item.PlaceID) == "" || strings.TrimSpace(item.Name) == "" || strings.TrimSpace(item.Address) == "" {
			result.Skipped++
			logger.Warn("skip restaurant missing required fields", zap.String("place_id", item.PlaceID), zap.String("name", item.Name))
			continue
		}
		item.ID = s.newID()
		inserted, err := s.restaurants.InsertIgnore(ctx, item)
		if err != nil {
			logger.Error("insert restaurant failed", zap.String("place_id", item.PlaceID), zap.Error(err))
			return nil, fmt.Errorf("insert restaurant %s: %w", item.PlaceID, err)
		}
		if inserted {
			result.Saved++
		} else {
			result.Existing++
		}
		result.PlaceIDs = append(result.PlaceIDs, item.PlaceID)
	}
	logger.Info("restaurants saved", zap.Int("saved", result.Saved), zap.Int("existing", result.Existing), zap.Int("skipped", result.Skipped))
	return result, nil
}

type SaveRestaurantMetadataResult struct {
	PlaceID      string `json:"placeId"`
	RestaurantID string `json:"restaurantId,omitempty"`
	Inserted     bool   `json:"inserted"`
	Skipped      bool   `json:"skipped,omitempty"`
}

// SaveRestaurantMetadata inserts the restaurant described by the enriched
// artifact named in msg. An artifact without a placeId is skipped.
func (s *PersistService) SaveRestaurantMetadata(ctx context.Context, msg model.QueueMessage) (*SaveRestaurantMetadataResult, error) {
	if s.restaurants == nil {
		return nil, fmt.Errorf("restaurant database: %w", appErr.ErrUnavailable)
	}
	if strings.TrimSpace(msg.S3Key) == "" {
		return nil, fmt.Errorf("s3Key is required: %w", appErr.ErrInvalid)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("s3_key", msg.S3Key))
	var doc model.RestaurantArtifact
	if err := artifact.Read(ctx, s.store, s.vectorLocation(msg.S3Key), &doc); err != nil {
		logger.Error("load restaurant artifact failed", zap.Error(err))
		return nil, err
	}
	if strings.TrimSpace(doc.PlaceID) == "" {
		logger.Warn("skip artifact without placeId")
		return &SaveRestaurantMetadataResult{Skipped: true}, nil
	}
	row := &model.Restaurant{
		ID:        s.newID(),
		PlaceID:   doc.PlaceID,
		Name:      doc.Name,
		Address:   doc.Address,
		Latitude:  doc.Latitude,
		Longitude: doc.Longitude,
		Thumbnail: doc.Thumbnail,
	}
	inserted, err := s.restaurants.InsertIgnore(ctx, row)
	if err != nil {
		logger.Error("insert restaurant failed", zap.String("place_id", doc.PlaceID), zap.Error(err))
		return nil, fmt.Errorf("insert restaurant %s: %w", doc.PlaceID, err)
	}
	result := &SaveRestaurantMetadataResult{PlaceID: doc.PlaceID, RestaurantID: row.ID, Inserted: inserted}
	if !inserted {
		existing, err := s.restaurants.FindIDByPlaceID(ctx, doc.PlaceID)
		if err != nil {
			return nil, fmt.Errorf("resolve restaurant %s: %w", doc.PlaceID, err)
		}
		result.RestaurantID = existing
	}
	logger.Info("restaurant metadata saved",
		zap.String("place_id", doc.PlaceID),
		zap.String("restaurant_id", result.RestaurantID),
		zap.Bool("inserted", inserted),
	)
	return result, nil
}

func (s *PersistService) vectorLocation(key string) objstore.Location {
	return objstore.Location{Key: objstore.Join(s.layout.VectorDir, key)}
}

type SaveVectorResult struct {
	RestaurantID   string `json:"restaurantId"`
	PlaceID        string `json:"placeId"`
	VectorInserted bool   `json:"vectorInserted"`
	Reviews        int    `json:"reviews"`
	Duplicates     int    `json:"duplicates"`
}

// SaveVector stores a restaurant's vectors and its reviews in one
// transaction.
func (s *PersistService) SaveVector(ctx context.Context, msg model.QueueMessage) (*SaveVectorResult, error) {
	if s.vectors == nil || s.reviews == nil {
		return nil, fmt.Errorf("vector database: %w", appErr.ErrUnavailable)
	}
	if strings.TrimSpace(msg.S3Key) == "" {
		return nil, fmt.Errorf("s3Key is required: %w", appErr.ErrInvalid)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("s3_key", msg.S3Key))
	var doc model.RestaurantArtifact
	loc := s.vectorLocation(msg.S3Key)
	if err := artifact.Read(ctx, s.store, loc, &doc); err != nil {
		logger.Error("load restaurant artifact failed", zap.Error(err))
		return nil, err
	}
	if strings.TrimSpace(doc.PlaceID) == "" {
		return nil, fmt.Errorf("artifact %s has no placeId: %w", loc, appErr.ErrInvalid)
	}
	restaurantID := msg.RestaurantID
	if restaurantID == "" {
		restaurantID = s.newID()
	}
	row := &model.RestaurantVector{
		ID:              restaurantID,
		PlaceID:         doc.PlaceID,
		CompanionVector: s.vector(doc.Embeddings[model.AttrCompanion]),
		FoodVector:      s.vector(doc.Embeddings[model.AttrFood]),
		PurposeVector:   s.vector(doc.Embeddings[model.AttrPurpose]),
		VibeVector:      s.vector(doc.Embeddings[model.AttrVibe]),
		Latitude:        doc.Latitude,
		Longitude:       doc.Longitude,
	}
	result := &SaveVectorResult{PlaceID: doc.PlaceID}
	err := dbutil.WithTx(ctx, s.vectors.DB(), func(tx *sql.Tx) error {
		inserted, err := s.vectors.InsertIgnore(ctx, tx, row)
		if err != nil {
			return fmt.Errorf("insert restaurant vector: %w", err)
		}
		result.VectorInserted = inserted
		if !inserted {
			existing, err := s.vectors.FindIDByPlaceID(ctx, doc.PlaceID)
			if err != nil {
				return fmt.Errorf("resolve restaurant vector %s: %w", doc.PlaceID, err)
			}
			restaurantID = existing
		}
		for _, review := range s.crawlingReviews(doc.Reviews, restaurantID) {
			ok, err := s.reviews.InsertIgnore(ctx, tx, review)
			if err != nil {
				return fmt.Errorf("insert review %s: %w", review.Hash, err)
			}
			if ok {
				result.Reviews++
			} else {
				result.Duplicates++
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("save vector failed", zap.Error(err))
		return nil, err
	}
	result.RestaurantID = restaurantID
	s.placeCache.Add(doc.PlaceID, restaurantID)
	logger.Info("restaurant vector saved",
		zap.String("place_id", doc.PlaceID),
		zap.Bool("vector_inserted", result.VectorInserted),
		zap.Int("reviews", result.Reviews),
		zap.Int("duplicates", result.Duplicates),
	)
	return result, nil
}

type SaveReviewsResult struct {
	Inserted      int      `json:"inserted"`
	Duplicates    int      `json:"duplicates"`
	SkippedPlaces []string `json:"skippedPlaces"`
}

// SaveReviews stores the embedded reviews under key, grouped by place. A
// place without a restaurant vector row is skipped.
func (s *PersistService) SaveReviews(ctx context.Context, key string) (*SaveReviewsResult, error) {
	if s.vectors == nil || s.reviews == nil {
		return nil, fmt.Errorf("vector database: %w", appErr.ErrUnavailable)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("key", key))
	var reviews []model.Review
	loc := objstore.Location{Key: objstore.Join(s.layout.EmbeddingDir, key+".json.gz")}
	if err := artifact.Read(ctx, s.store, loc, &reviews); err != nil {
		logger.Error("load embedded reviews failed", zap.Error(err))
		return nil, err
	}
	groups := make(map[string][]model.Review)
	var places []string
	for _, review := range reviews {
		if review.PlaceID == "" {
			logger.Warn("skip review without placeId", zap.String("review_id", review.ID))
			continue
		}
		if _, ok := groups[review.PlaceID]; !ok {
			places = append(places, review.PlaceID)
		}
		groups[review.PlaceID] = append(groups[review.PlaceID], review)
	}
	ids, err := s.resolveRestaurants(ctx, places)
	if err != nil {
		return nil, err
	}
	result := &SaveReviewsResult{SkippedPlaces: []string{}}
	for _, placeID := range places {
		restaurantID, ok := ids[placeID]
		if !ok {
			logger.Warn("restaurant not found, skip reviews", zap.String("place_id", placeID), zap.Int("reviews", len(groups[placeID])))
			result.SkippedPlaces = append(result.SkippedPlaces, placeID)
			continue
		}
		for _, row := range s.crawlingReviews(groups[placeID], restaurantID) {
			inserted, err := s.reviews.InsertIgnore(ctx, nil, row)
			if err != nil {
				logger.Error("insert review failed", zap.String("place_id", placeID), zap.Error(err))
				return nil, fmt.Errorf("insert review %s: %w", row.Hash, err)
			}
			if inserted {
				result.Inserted++
			} else {
				result.Duplicates++
			}
		}
	}
	logger.Info("reviews saved",
		zap.Int("inserted", result.Inserted),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("skipped_places", len(result.SkippedPlaces)),
	)
	return result, nil
}

func (s *PersistService) resolveRestaurants(ctx context.Context, places []string) (map[string]string, error) {
	ids := make(map[string]string, len(places))
	var missing []string
	for _, placeID := range places {
		if id, ok := s.placeCache.Get(placeID); ok {
			ids[placeID] = id
			continue
		}
		missing = append(missing, placeID)
	}
	if len(missing) == 0 {
		return ids, nil
	}
	found, err := s.vectors.FindIDsByPlaceIDs(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("resolve restaurants: %w", err)
	}
	for placeID, id := range found {
		s.placeCache.Add(placeID, id)
		ids[placeID] = id
	}
	return ids, nil
}

// crawlingReviews converts reviews into rows keyed by content hash, dropping
// blank and repeated content. Rows come back ordered by hash.
func (s *PersistService) crawlingReviews(reviews []model.Review, restaurantID string) []*model.CrawlingReview {
	seen := make(map[string]struct{}, len(reviews))
	rows := make([]*model.CrawlingReview, 0, len(reviews))
	for _, review := range reviews {
		if strings.TrimSpace(review.Content) == "" {
			continue
		}
		hash := ContentHash(review.Content)
		if _, ok := seen[hash]; ok {
			continue
		}
		seen[hash] = struct{}{}
		rows = append(rows, &model.CrawlingReview{
			Hash:            hash,
			Content:         review.Content,
			RestaurantID:    restaurantID,
			VibeVector:      s.vector(review.Embeddings[model.AttrVibe]),
			FoodVector:      s.vector(review.Embeddings[model.AttrFood]),
			CompanionVector: s.vector(review.Embeddings[model.AttrCompanion]),
			PurposeVector:   s.vector(review.Embeddings[model.AttrPurpose]),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Hash < rows[j].Hash })
	return rows
}

// vector returns v as a column value, or a zero vector when v is missing or
// has the wrong width.
func (s *PersistService) vector(v []float32) pgvector.Vector {
	if len(v) != s.dimensions {
		return pgvector.NewVector(make([]float32, s.dimensions))
	}
	return pgvector.NewVector(v)
}

func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
