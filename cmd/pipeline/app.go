package main

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/wellmeet-pipeline/internal/ai"
	"github.com/xxxsen/wellmeet-pipeline/internal/config"
	"github.com/xxxsen/wellmeet-pipeline/internal/db"
	"github.com/xxxsen/wellmeet-pipeline/internal/handler"
	"github.com/xxxsen/wellmeet-pipeline/internal/objstore"
	"github.com/xxxsen/wellmeet-pipeline/internal/pkg/awsutil"
	"github.com/xxxsen/wellmeet-pipeline/internal/queue"
	"github.com/xxxsen/wellmeet-pipeline/internal/repo"
	"github.com/xxxsen/wellmeet-pipeline/internal/service"
)

// app owns the clients built once per process. A dependency that cannot be
// built leaves the functions needing it unavailable instead of failing the
// whole process, so one binary can serve every function.
type app struct {
	registry *handler.Registry
	services handler.Services
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logutil.GetLogger(ctx)
	a := &app{}

	awsCfg, err := awsutil.Load(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	store, err := objstore.New(ctx, cfg.Storage, awsCfg)
	if err != nil {
		return nil, fmt.Errorf("init object store: %w", err)
	}
	sender := queue.NewSQSSender(awsCfg)

	if submitter, err := queue.NewSubmitter(cfg.Dispatch, awsCfg, sender); err != nil {
		logger.Warn("dispatch disabled", zap.Error(err))
	} else {
		a.services.Dispatch = service.NewDispatchService(store, submitter, cfg.Dispatch.IDFields)
	}

	if client, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data); err != nil {
		logger.Warn("inference disabled", zap.String("provider", cfg.AI.Provider), zap.Error(err))
	} else {
		a.services.Embedding = service.NewEmbeddingService(store, client, cfg.Layout, cfg.AI)
		a.services.Category = service.NewCategoryService(store, client, a.services.Embedding, cfg.Layout, cfg.AI)
		a.services.Restaurant = service.NewRestaurantEmbeddingService(store, client, sender, cfg.Layout, cfg.AI, cfg.Enrich)
	}

	var (
		restaurants *repo.RestaurantRepo
		outbox      *repo.OutboxRepo
		vectors     *repo.VectorRepo
		reviews     *repo.ReviewRepo
	)
	if cfg.RestaurantDB.DSN != "" {
		gdb, err := db.OpenMySQL(cfg.RestaurantDB)
		if err != nil {
			logger.Warn("restaurant database unavailable", zap.Error(err))
		} else {
			if sqlDB, err := gdb.DB(); err == nil {
				a.closers = append(a.closers, func() { _ = sqlDB.Close() })
			}
			restaurants = repo.NewRestaurantRepo(gdb)
			outbox = repo.NewOutboxRepo(gdb)
		}
	}
	if cfg.VectorDB.Configured() {
		pdb, err := db.Open(cfg.VectorDB)
		if err != nil {
			logger.Warn("vector database unavailable", zap.Error(err))
		} else {
			a.closers = append(a.closers, func() { _ = pdb.Close() })
			vectors = repo.NewVectorRepo(pdb)
			reviews = repo.NewReviewRepo(pdb)
		}
	}
	a.services.Persist = service.NewPersistService(store, cfg.Layout, restaurants, vectors, reviews, cfg.AI.EmbeddingDimensions)
	if outbox != nil && cfg.Outbox.QueueURL != "" {
		a.services.Outbox = service.NewOutboxService(outbox, sender, cfg.Outbox.QueueURL, cfg.Outbox.BatchSize)
	}

	a.registry = handler.NewFunctionRegistry(a.services)
	logger.Info("pipeline initialized",
		zap.String("storage", cfg.Storage.Type),
		zap.String("bucket", cfg.Storage.Bucket),
		zap.Strings("functions", a.registry.Names()),
	)
	return a, nil
}
