package ai

import (
	"context"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/xxxsen/wellmeet-pipeline/internal/model"
	appErr "github.com/xxxsen/wellmeet-pipeline/internal/pkg/errors"
)

type openAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	OrgID   string `json:"org_id"`
}

type openAIClient struct {
	client *openai.Client
}

func init() {
	Register("openai", createOpenAIFactory)
}

func createOpenAIFactory(args interface{}) (Client, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openai api_key: %w", appErr.ErrUnavailable)
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}
	if cfg.OrgID != "" {
		clientCfg.OrgID = cfg.OrgID
	}
	return &openAIClient{client: openai.NewClientWithConfig(clientCfg)}, nil
}

func (c *openAIClient) UploadBatchFile(ctx context.Context, name string, data []byte) (string, error) {
	file, err := c.client.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    name,
		Bytes:   data,
		Purpose: openai.PurposeBatch,
	})
	if err != nil {
		return "", fmt.Errorf("upload batch file: %w", err)
	}
	return file.ID, nil
}

func (c *openAIClient) CreateBatch(ctx context.Context, fileID string, endpoint model.BatchEndpoint, window string) (*model.BatchJob, error) {
	resp, err := c.client.CreateBatch(ctx, openai.CreateBatchRequest{
		InputFileID:      fileID,
		Endpoint:         openai.BatchEndpoint(endpoint),
		CompletionWindow: window,
	})
	if err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	return toBatchJob(resp.Batch), nil
}

func (c *openAIClient) RetrieveBatch(ctx context.Context, batchID string) (*model.BatchJob, error) {
	resp, err := c.client.RetrieveBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("retrieve batch %s: %w", batchID, err)
	}
	return toBatchJob(resp.Batch), nil
}

func (c *openAIClient) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	resp, err := c.client.GetFileContent(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", fileID, err)
	}
	return resp.ReadCloser, nil
}

func (c *openAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	chat := openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSON {
		chat.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	resp, err := c.client.CreateChatCompletion(ctx, chat)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns one vector per input, in input order.
func (c *openAIClient) Embed(ctx context.Context, embeddingModel string, inputs []string, dimensions int) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      inputs,
		Model:      openai.EmbeddingModel(embeddingModel),
		Dimensions: dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	out := make([][]float32, len(inputs))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}

func toBatchJob(b openai.Batch) *model.BatchJob {
	job := &model.BatchJob{
		ID:     b.ID,
		Status: model.ParseBatchStatus(b.Status),
	}
	if b.OutputFileID != nil {
		job.OutputFileID = *b.OutputFileID
	}
	if b.ErrorFileID != nil {
		job.ErrorFileID = *b.ErrorFileID
	}
	return job
}
