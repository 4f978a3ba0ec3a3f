package ai

import (
	"encoding/json"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/xxxsen/wellmeet-pipeline/internal/model"
)

type ChatRequestLine struct {
	CustomID string                       `json:"custom_id"`
	Method   string                       `json:"method"`
	URL      model.BatchEndpoint          `json:"url"`
	Body     openai.ChatCompletionRequest `json:"body"`
}

type EmbeddingRequestLine struct {
	CustomID string                  `json:"custom_id"`
	Method   string                  `json:"method"`
	URL      model.BatchEndpoint     `json:"url"`
	Body     openai.EmbeddingRequest `json:"body"`
}

func NewExtractionRequest(customID, chatModel, content string) ChatRequestLine {
	return ChatRequestLine{
		CustomID: customID,
		Method:   http.MethodPost,
		URL:      model.EndpointChatCompletions,
		Body: openai.ChatCompletionRequest{
			Model: chatModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: categoryExtractionPrompt},
				{Role: openai.ChatMessageRoleUser, Content: content},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	}
}

func NewEmbeddingRequest(customID, embeddingModel, input string, dimensions int) EmbeddingRequestLine {
	return EmbeddingRequestLine{
		CustomID: customID,
		Method:   http.MethodPost,
		URL:      model.EndpointEmbeddings,
		Body: openai.EmbeddingRequest{
			Input:      input,
			Model:      openai.EmbeddingModel(embeddingModel),
			Dimensions: dimensions,
		},
	}
}

// DecodeChatContent returns the first choice's message content of a chat
// completion response body.
func DecodeChatContent(body json.RawMessage) (string, error) {
	var resp openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func DecodeEmbedding(body json.RawMessage) ([]float32, error) {
	var resp openai.EmbeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response has no data")
	}
	return resp.Data[0].Embedding, nil
}
