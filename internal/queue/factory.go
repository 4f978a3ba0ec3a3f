package queue

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/xxxsen/wellmeet-pipeline/internal/config"
)

// NewSubmitter builds the dispatcher's job submitter from dispatch config.
func NewSubmitter(cfg config.DispatchConfig, awsCfg aws.Config, sender Sender) (JobSubmitter, error) {
	switch cfg.Type {
	case "batch":
		c := &batchSubmitterConfig{}
		if err := decodeConfig(cfg.Data, c); err != nil {
			return nil, err
		}
		if c.JobQueue == "" || c.JobDefinition == "" {
			return nil, fmt.Errorf("dispatch.data job_queue/job_definition are required for batch dispatch")
		}
		return NewBatchSubmitter(awsCfg, c.JobQueue, c.JobDefinition), nil
	case "sqs":
		c := &sqsSubmitterConfig{}
		if err := decodeConfig(cfg.Data, c); err != nil {
			return nil, err
		}
		if c.QueueURL == "" {
			return nil, fmt.Errorf("dispatch.data queue_url is required for sqs dispatch")
		}
		return NewSQSSubmitter(sender, c.QueueURL), nil
	default:
		return nil, fmt.Errorf("unsupported dispatch type: %s", cfg.Type)
	}
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode dispatch config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode dispatch config: %w", err)
	}
	return nil
}
