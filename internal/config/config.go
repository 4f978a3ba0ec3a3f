package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port         int              `json:"port"`
	LogConfig    logger.LogConfig `json:"log_config"`
	AWS          AWSConfig        `json:"aws"`
	Storage      StorageConfig    `json:"storage"`
	Layout       LayoutConfig     `json:"layout"`
	AI           AIConfig         `json:"ai"`
	Dispatch     DispatchConfig   `json:"dispatch"`
	Outbox       OutboxConfig     `json:"outbox"`
	Enrich       EnrichConfig     `json:"enrich"`
	RestaurantDB MySQLConfig      `json:"restaurant_db"`
	VectorDB     DatabaseConfig   `json:"vector_db"`
}

type AWSConfig struct {
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

type StorageConfig struct {
	Type   string      `json:"type"`
	Bucket string      `json:"bucket"`
	Data   interface{} `json:"data"`
}

// LayoutConfig names the key prefixes each stage reads from and writes to.
type LayoutConfig struct {
	RestaurantDir string `json:"restaurant_dir"`
	ReviewDir     string `json:"review_dir"`
	CategoryDir   string `json:"category_dir"`
	EmbeddingDir  string `json:"embedding_dir"`
	VectorDir     string `json:"vector_dir"`
}

type AIConfig struct {
	Provider            string      `json:"provider"`
	Data                interface{} `json:"data"`
	ChatModel           string      `json:"chat_model"`
	EmbeddingModel      string      `json:"embedding_model"`
	EmbeddingDimensions int         `json:"embedding_dimensions"`
	CompletionWindow    string      `json:"completion_window"`
}

type DispatchConfig struct {
	Type     string      `json:"type"`
	IDFields []string    `json:"id_fields"`
	Data     interface{} `json:"data"`
}

type OutboxConfig struct {
	QueueURL  string `json:"queue_url"`
	Cron      string `json:"cron"`
	BatchSize int    `json:"batch_size"`
}

// EnrichConfig drives restaurant-level review enrichment. When
// NotifyQueueURL is set every written artifact is announced on that queue.
type EnrichConfig struct {
	ChunkSize      int    `json:"chunk_size"`
	Concurrency    int    `json:"concurrency"`
	NotifyQueueURL string `json:"notify_queue_url"`
}

type MySQLConfig struct {
	DSN string `json:"dsn"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

func (c DatabaseConfig) Configured() bool {
	return c.DSN != "" || c.Host != ""
}

// Load reads the JSON config at path. An empty path starts from defaults so a
// function can be configured from the environment alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := json.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	_ = godotenv.Load()
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("S3_BUCKET_NAME"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" && cfg.AWS.Region == "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		data, _ := cfg.AI.Data.(map[string]interface{})
		if data == nil {
			data = map[string]interface{}{}
		}
		data["api_key"] = v
		cfg.AI.Data = data
	}
	if v := os.Getenv("OUTBOX_QUEUE_URL"); v != "" {
		cfg.Outbox.QueueURL = v
	}
	if v := os.Getenv("SAVE_RESTAURANT_QUEUE_URL"); v != "" {
		cfg.Enrich.NotifyQueueURL = v
	}
	if v := os.Getenv("RESTAURANT_DB_DSN"); v != "" {
		cfg.RestaurantDB.DSN = v
	}
	if v := os.Getenv("RECOMMEND_DB_DSN"); v != "" {
		cfg.VectorDB.DSN = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "s3"
	}
	setDefault(&cfg.Layout.RestaurantDir, "restaurant")
	setDefault(&cfg.Layout.ReviewDir, "review")
	setDefault(&cfg.Layout.CategoryDir, "category")
	setDefault(&cfg.Layout.EmbeddingDir, "embedding")
	setDefault(&cfg.Layout.VectorDir, "embedding")
	setDefault(&cfg.AI.Provider, "openai")
	setDefault(&cfg.AI.ChatModel, "gpt-4o-mini")
	setDefault(&cfg.AI.EmbeddingModel, "text-embedding-3-small")
	setDefault(&cfg.AI.CompletionWindow, "24h")
	if cfg.AI.EmbeddingDimensions == 0 {
		cfg.AI.EmbeddingDimensions = 768
	}
	setDefault(&cfg.Dispatch.Type, "batch")
	if len(cfg.Dispatch.IDFields) == 0 {
		cfg.Dispatch.IDFields = []string{"placeId", "place_id"}
	}
	setDefault(&cfg.Outbox.Cron, "0 * * * *")
	if cfg.Outbox.BatchSize == 0 {
		cfg.Outbox.BatchSize = 100
	}
	if cfg.Enrich.ChunkSize == 0 {
		cfg.Enrich.ChunkSize = 20
	}
	if cfg.Enrich.Concurrency == 0 {
		cfg.Enrich.Concurrency = 4
	}
	if cfg.VectorDB.Port == 0 {
		cfg.VectorDB.Port = 5432
	}
}

func validate(cfg *Config) error {
	switch cfg.Storage.Type {
	case "s3":
		if cfg.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for s3 storage")
		}
	case "local":
	default:
		return fmt.Errorf("storage.type must be local or s3")
	}
	switch cfg.Dispatch.Type {
	case "batch", "sqs":
	default:
		return fmt.Errorf("dispatch.type must be batch or sqs")
	}
	if cfg.AI.EmbeddingDimensions < 0 {
		return fmt.Errorf("ai.embedding_dimensions must be positive")
	}
	if cfg.Outbox.BatchSize < 0 {
		return fmt.Errorf("outbox.batch_size must be positive")
	}
	if cfg.Enrich.ChunkSize < 0 || cfg.Enrich.Concurrency < 0 {
		return fmt.Errorf("enrich.chunk_size and enrich.concurrency must be positive")
	}
	return nil
}

func setDefault(dst *string, value string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = value
	}
}
