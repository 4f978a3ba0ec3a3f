package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/wellmeet-pipeline/internal/ai"
	"github.com/xxxsen/wellmeet-pipeline/internal/model"
	"github.com/xxxsen/wellmeet-pipeline/internal/objstore"
	appErr "github.com/xxxsen/wellmeet-pipeline/internal/pkg/errors"
)

type fakeBatch struct {
	job      model.BatchJob
	endpoint model.BatchEndpoint
	inputID  string
}

// fakeBatchClient keeps uploaded files and batches in memory. Tests move a
// batch forward with setStatus and complete.
type fakeBatchClient struct {
	mu        sync.Mutex
	files     map[string][]byte
	batches   map[string]*fakeBatch
	order     []string
	seq       int
	createErr error
}

func newFakeBatchClient() *fakeBatchClient {
	return &fakeBatchClient{files: map[string][]byte{}, batches: map[string]*fakeBatch{}}
}

func (f *fakeBatchClient) UploadBatchFile(ctx context.Context, name string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("file-%d", f.seq)
	f.files[id] = append([]byte(nil), data...)
	return id, nil
}

func (f *fakeBatchClient) CreateBatch(ctx context.Context, fileID string, endpoint model.BatchEndpoint, window string) (*model.BatchJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	id := fmt.Sprintf("batch-%d", f.seq)
	b := &fakeBatch{job: model.BatchJob{ID: id, Status: model.BatchStatusValidating}, endpoint: endpoint, inputID: fileID}
	f.batches[id] = b
	f.order = append(f.order, id)
	job := b.job
	return &job, nil
}

func (f *fakeBatchClient) RetrieveBatch(ctx context.Context, batchID string) (*model.BatchJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[batchID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	job := b.job
	return &job, nil
}

func (f *fakeBatchClient) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[fileID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBatchClient) setStatus(batchID string, status model.BatchStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches[batchID].job.Status = status
}

// complete marks the batch completed with the given output lines.
func (f *fakeBatchClient) complete(t *testing.T, batchID string, lines ...string) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[batchID]
	require.True(t, ok)
	f.seq++
	outID := fmt.Sprintf("file-%d", f.seq)
	f.files[outID] = []byte(strings.Join(lines, "\n") + "\n")
	b.job.Status = model.BatchStatusCompleted
	b.job.OutputFileID = outID
}

type inputLine struct {
	CustomID string              `json:"custom_id"`
	Method   string              `json:"method"`
	URL      model.BatchEndpoint `json:"url"`
	Body     json.RawMessage     `json:"body"`
}

func (f *fakeBatchClient) inputLines(t *testing.T, batchID string) []inputLine {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[batchID]
	require.True(t, ok)
	var lines []inputLine
	scanner := bufio.NewScanner(bytes.NewReader(f.files[b.inputID]))
	for scanner.Scan() {
		var line inputLine
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	return lines
}

func (f *fakeBatchClient) lastBatchID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.order) == 0 {
		return ""
	}
	return f.order[len(f.order)-1]
}

func resultLine(t *testing.T, customID string, statusCode int, body interface{}) string {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	line, err := json.Marshal(map[string]interface{}{
		"id":        "req-" + customID,
		"custom_id": customID,
		"response":  map[string]interface{}{"status_code": statusCode, "body": json.RawMessage(raw)},
		"error":     nil,
	})
	require.NoError(t, err)
	return string(line)
}

func chatBody(content string) map[string]interface{} {
	return map[string]interface{}{
		"id": "chatcmpl-1",
		"choices": []interface{}{
			map[string]interface{}{
				"index":   0,
				"message": map[string]interface{}{"role": "assistant", "content": content},
			},
		},
	}
}

func embeddingBody(vec []float32) map[string]interface{} {
	return map[string]interface{}{
		"object": "list",
		"data": []interface{}{
			map[string]interface{}{"object": "embedding", "index": 0, "embedding": vec},
		},
	}
}

func putJSON(t *testing.T, store objstore.Store, key string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), objstore.Location{Key: key}, data, objstore.PutOptions{}))
}

type fakeSubmitter struct {
	units []model.WorkUnit
	err   error
}

func (f *fakeSubmitter) Submit(ctx context.Context, unit model.WorkUnit) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.units = append(f.units, unit)
	return "job-" + unit.Identifier, nil
}

type fakeSender struct {
	bodies [][]byte
	failOn map[int]bool
	calls  int
}

func (f *fakeSender) Send(ctx context.Context, queueURL string, body []byte) (string, error) {
	f.calls++
	if f.failOn[f.calls] {
		return "", fmt.Errorf("queue unavailable")
	}
	f.bodies = append(f.bodies, body)
	return fmt.Sprintf("msg-%d", f.calls), nil
}

// fakeCompletionClient answers by system prompt: chunk and final summaries
// are numbered, keyword extraction returns keywords.
type fakeCompletionClient struct {
	mu        sync.Mutex
	keywords  string
	dims      int
	chunks    []string
	finals    []string
	embedded  [][]string
	failChunk bool
}

func (f *fakeCompletionClient) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch req.System {
	case ai.ChunkSummaryPrompt:
		if f.failChunk {
			return "", fmt.Errorf("rate limited")
		}
		f.chunks = append(f.chunks, req.User)
		return fmt.Sprintf("chunk summary %d", strings.Count(req.User, "리뷰 ")), nil
	case ai.FinalSummaryPrompt:
		f.finals = append(f.finals, req.User)
		return "final summary", nil
	case ai.KeywordExtractionPrompt:
		if !req.JSON {
			return "", fmt.Errorf("keyword extraction must request json")
		}
		return f.keywords, nil
	default:
		return "", fmt.Errorf("unexpected prompt")
	}
}

func (f *fakeCompletionClient) Embed(ctx context.Context, embeddingModel string, inputs []string, dimensions int) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedded = append(f.embedded, inputs)
	out := make([][]float32, len(inputs))
	for i := range inputs {
		vec := make([]float32, f.dims)
		for j := range vec {
			vec[j] = float32(i + 1)
		}
		out[i] = vec
	}
	return out, nil
}
