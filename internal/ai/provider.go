package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xxxsen/wellmeet-pipeline/internal/model"
)

// BatchClient is the asynchronous batch surface of an inference API: upload
// a JSONL request file, start a job over it, poll it and fetch its output.
type BatchClient interface {
	UploadBatchFile(ctx context.Context, name string, data []byte) (string, error)
	CreateBatch(ctx context.Context, fileID string, endpoint model.BatchEndpoint, window string) (*model.BatchJob, error)
	RetrieveBatch(ctx context.Context, batchID string) (*model.BatchJob, error)
	DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// CompletionRequest is one synchronous chat completion with a single system
// and user message.
type CompletionRequest struct {
	Model       string
	System      string
	User        string
	MaxTokens   int
	Temperature float32
	JSON        bool
}

// CompletionClient is the synchronous surface used when a result is needed
// within the same invocation.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Embed(ctx context.Context, model string, inputs []string, dimensions int) ([][]float32, error)
}

// Client is everything a provider offers.
type Client interface {
	BatchClient
	CompletionClient
}

type ProviderFactory func(args interface{}) (Client, error)

var registry = map[string]ProviderFactory{}

func Register(name string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func NewProvider(name string, args interface{}) (Client, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai config: %w", err)
	}
	return nil
}
