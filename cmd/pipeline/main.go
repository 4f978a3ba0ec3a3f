package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/wellmeet-pipeline/internal/config"
	"github.com/xxxsen/wellmeet-pipeline/internal/db"
	"github.com/xxxsen/wellmeet-pipeline/internal/handler"
	"github.com/xxxsen/wellmeet-pipeline/internal/job"
	"github.com/xxxsen/wellmeet-pipeline/internal/middleware"
	"github.com/xxxsen/wellmeet-pipeline/internal/schedule"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "pipeline",
		Short: "wellmeet review enrichment pipeline",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("PIPELINE_CONFIG"), "path to config.json")

	var lambdaFunction string
	lambdaCmd := &cobra.Command{
		Use:   "lambda",
		Short: "run one function under the lambda runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			if lambdaFunction == "" {
				lambdaFunction = os.Getenv("PIPELINE_FUNCTION")
			}
			ctx := context.Background()
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			fn, err := handler.LambdaHandler(a.registry, lambdaFunction)
			if err != nil {
				return err
			}
			lambda.Start(fn)
			return nil
		},
	}
	lambdaCmd.Flags().StringVar(&lambdaFunction, "function", "", "function name (default $PIPELINE_FUNCTION)")

	var invokeFunction, eventPath string
	invokeCmd := &cobra.Command{
		Use:   "invoke",
		Short: "invoke one function with an event file and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			if invokeFunction == "" {
				return fmt.Errorf("--function is required")
			}
			event, err := readEvent(eventPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			ctx := context.Background()
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			result, err := a.registry.Invoke(ctx, invokeFunction, event)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	invokeCmd.Flags().StringVar(&invokeFunction, "function", "", "function name")
	invokeCmd.Flags().StringVar(&eventPath, "event", "", "event json file, - for stdin")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve every function over http and run the outbox relay on its schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "create the vector and restaurant tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runMigrations(cfg)
		},
	}

	rootCmd.AddCommand(lambdaCmd, invokeCmd, serveCmd, migrateCmd)
	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func readEvent(path string, stdin io.Reader) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	switch path {
	case "":
		return json.RawMessage("{}"), nil
	case "-":
		data, err = io.ReadAll(stdin)
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read event: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("event %s is not valid json", path)
	}
	return data, nil
}

func runMigrations(cfg *config.Config) error {
	log := logutil.GetLogger(context.Background())
	if cfg.VectorDB.Configured() {
		pdb, err := db.Open(cfg.VectorDB)
		if err != nil {
			return fmt.Errorf("open vector db: %w", err)
		}
		defer pdb.Close()
		if err := db.ApplyMigrations(pdb); err != nil {
			return fmt.Errorf("vector db migrations: %w", err)
		}
		log.Info("vector db migrated")
	}
	if cfg.RestaurantDB.DSN != "" {
		gdb, err := db.OpenMySQL(cfg.RestaurantDB)
		if err != nil {
			return fmt.Errorf("open restaurant db: %w", err)
		}
		if sqlDB, err := gdb.DB(); err == nil {
			defer sqlDB.Close()
		}
		if err := db.MigrateMySQL(gdb); err != nil {
			return fmt.Errorf("restaurant db migrations: %w", err)
		}
		log.Info("restaurant db migrated")
	}
	return nil
}

func runServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	scheduler := schedule.NewCronScheduler()
	var relay *job.OutboxRelayJob
	if a.services.Outbox != nil {
		relay = job.NewOutboxRelayJob(a.services.Outbox)
		if err := scheduler.AddJob(relay, cfg.Outbox.Cron); err != nil {
			return fmt.Errorf("schedule outbox relay: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()
	if relay != nil {
		if err := scheduler.RunNow(relay.Name()); err != nil {
			return err
		}
	}

	functions := handler.NewFunctionHandler(a.registry)
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, functions)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestLog(),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
