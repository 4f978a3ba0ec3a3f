package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/batch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/wellmeet-pipeline/internal/config"
	"github.com/xxxsen/wellmeet-pipeline/internal/model"
)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
}

func (f *fakeSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

type fakeBatch struct {
	inputs []*batch.SubmitJobInput
}

func (f *fakeBatch) SubmitJob(ctx context.Context, in *batch.SubmitJobInput, _ ...func(*batch.Options)) (*batch.SubmitJobOutput, error) {
	f.inputs = append(f.inputs, in)
	return &batch.SubmitJobOutput{JobId: aws.String("job-1"), JobName: in.JobName}, nil
}

func TestSQSSubmitter_SendsWorkUnit(t *testing.T) {
	api := &fakeSQS{}
	submitter := NewSQSSubmitter(&SQSSender{client: api}, "https://sqs.example/q")
	id, err := submitter.Submit(context.Background(), model.WorkUnit{Identifier: "123", SourceBucket: "b", SourceKey: "k.json"})
	require.NoError(t, err)
	require.Equal(t, "m-1", id)
	require.Len(t, api.inputs, 1)
	require.Equal(t, "https://sqs.example/q", aws.ToString(api.inputs[0].QueueUrl))

	var unit model.WorkUnit
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(api.inputs[0].MessageBody)), &unit))
	require.Equal(t, "123", unit.Identifier)
	require.Equal(t, "k.json", unit.SourceKey)
}

func TestSQSSender_RequiresQueueURL(t *testing.T) {
	_, err := (&SQSSender{client: &fakeSQS{}}).Send(context.Background(), "", []byte("{}"))
	require.Error(t, err)
}

func TestBatchSubmitter_PassesEnvironment(t *testing.T) {
	api := &fakeBatch{}
	s := newBatchSubmitter(api, "queue", "def")
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	id, err := s.Submit(context.Background(), model.WorkUnit{Identifier: "1234", SourceBucket: "b", SourceKey: "restaurant/a.json"})
	require.NoError(t, err)
	require.Equal(t, "job-1", id)
	in := api.inputs[0]
	require.Equal(t, "process-place-1234-1700000000", aws.ToString(in.JobName))
	require.Equal(t, "queue", aws.ToString(in.JobQueue))
	env := map[string]string{}
	for _, kv := range in.ContainerOverrides.Environment {
		env[aws.ToString(kv.Name)] = aws.ToString(kv.Value)
	}
	require.Equal(t, map[string]string{"PLACE_ID": "1234", "SOURCE_BUCKET": "b", "SOURCE_KEY": "restaurant/a.json"}, env)
}

func TestSanitizeJobName(t *testing.T) {
	require.Equal(t, "a-b_c-1", sanitizeJobName("a.b_c 1"))
}

func TestNewSubmitter_Validates(t *testing.T) {
	_, err := NewSubmitter(config.DispatchConfig{Type: "batch"}, aws.Config{}, nil)
	require.Error(t, err)
	_, err = NewSubmitter(config.DispatchConfig{Type: "sqs"}, aws.Config{}, nil)
	require.Error(t, err)
	s, err := NewSubmitter(config.DispatchConfig{Type: "sqs", Data: map[string]interface{}{"queue_url": "q"}}, aws.Config{}, &SQSSender{client: &fakeSQS{}})
	require.NoError(t, err)
	require.NotNil(t, s)
}
