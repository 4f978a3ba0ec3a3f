package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/batch"
	"github.com/aws/aws-sdk-go-v2/service/batch/types"

	"github.com/xxxsen/wellmeet-pipeline/internal/model"
)

type batchAPI interface {
	SubmitJob(ctx context.Context, params *batch.SubmitJobInput, optFns ...func(*batch.Options)) (*batch.SubmitJobOutput, error)
}

type batchSubmitterConfig struct {
	JobQueue      string `json:"job_queue"`
	JobDefinition string `json:"job_definition"`
}

// BatchSubmitter starts one AWS Batch job per work unit. The crawler
// container reads its input from the environment.
type BatchSubmitter struct {
	client        batchAPI
	jobQueue      string
	jobDefinition string
	now           func() time.Time
}

func NewBatchSubmitter(cfg aws.Config, jobQueue, jobDefinition string) *BatchSubmitter {
	return newBatchSubmitter(batch.NewFromConfig(cfg), jobQueue, jobDefinition)
}

func newBatchSubmitter(client batchAPI, jobQueue, jobDefinition string) *BatchSubmitter {
	return &BatchSubmitter{
		client:        client,
		jobQueue:      jobQueue,
		jobDefinition: jobDefinition,
		now:           time.Now,
	}
}

func (s *BatchSubmitter) Submit(ctx context.Context, unit model.WorkUnit) (string, error) {
	name := fmt.Sprintf("process-place-%s-%d", sanitizeJobName(unit.Identifier), s.now().Unix())
	out, err := s.client.SubmitJob(ctx, &batch.SubmitJobInput{
		JobName:       aws.String(name),
		JobQueue:      aws.String(s.jobQueue),
		JobDefinition: aws.String(s.jobDefinition),
		ContainerOverrides: &types.ContainerOverrides{
			Environment: []types.KeyValuePair{
				{Name: aws.String("PLACE_ID"), Value: aws.String(unit.Identifier)},
				{Name: aws.String("SOURCE_BUCKET"), Value: aws.String(unit.SourceBucket)},
				{Name: aws.String("SOURCE_KEY"), Value: aws.String(unit.SourceKey)},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("submit batch job %s: %w", name, err)
	}
	return aws.ToString(out.JobId), nil
}

// sanitizeJobName keeps the characters AWS Batch accepts in job names.
func sanitizeJobName(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			out = append(out, c)
		default:
			out = append(out, '-')
		}
	}
	if len(out) > 64 {
		out = out[:64]
	}
	return string(out)
}
