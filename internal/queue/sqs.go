package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/xxxsen/wellmeet-pipeline/internal/model"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type SQSSender struct {
	client sqsAPI
}

func NewSQSSender(cfg aws.Config) *SQSSender {
	return &SQSSender{client: sqs.NewFromConfig(cfg)}
}

func (s *SQSSender) Send(ctx context.Context, queueURL string, body []byte) (string, error) {
	if queueURL == "" {
		return "", fmt.Errorf("queue url is required")
	}
	out, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return "", fmt.Errorf("send sqs message: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

type sqsSubmitterConfig struct {
	QueueURL string `json:"queue_url"`
}

// SQSSubmitter dispatches a work unit as a JSON message.
type SQSSubmitter struct {
	sender   Sender
	queueURL string
}

func NewSQSSubmitter(sender Sender, queueURL string) *SQSSubmitter {
	return &SQSSubmitter{sender: sender, queueURL: queueURL}
}

func (s *SQSSubmitter) Submit(ctx context.Context, unit model.WorkUnit) (string, error) {
	body, err := json.Marshal(unit)
	if err != nil {
		return "", err
	}
	return s.sender.Send(ctx, s.queueURL, body)
}
