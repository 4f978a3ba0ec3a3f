package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/wellmeet-pipeline/internal/ai"
	"github.com/xxxsen/wellmeet-pipeline/internal/artifact"
	"github.com/xxxsen/wellmeet-pipeline/internal/model"
	appErr "github.com/xxxsen/wellmeet-pipeline/internal/pkg/errors"
)

// batchRunner holds the upload/submit/poll plumbing shared by the extraction
// and embedding stages.
type batchRunner struct {
	client ai.BatchClient
	window string
}

func submitLines[T any](ctx context.Context, r *batchRunner, name string, endpoint model.BatchEndpoint, lines []T) (*model.BatchJob, error) {
	if len(lines) == 0 {
		return nil, appErr.ErrEmptyBatch
	}
	data, err := artifact.EncodeLines(lines)
	if err != nil {
		return nil, fmt.Errorf("encode batch input: %w", err)
	}
	fileID, err := r.client.UploadBatchFile(ctx, name, data)
	if err != nil {
		return nil, fmt.Errorf("upload batch input: %w", err)
	}
	job, err := r.client.CreateBatch(ctx, fileID, endpoint, r.window)
	if err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	return job, nil
}

func (r *batchRunner) poll(ctx context.Context, batchID string) (*model.BatchJob, State, error) {
	if batchID == "" {
		return nil, "", fmt.Errorf("batch id is required: %w", appErr.ErrInvalid)
	}
	job, err := r.client.RetrieveBatch(ctx, batchID)
	if err != nil {
		return nil, "", fmt.Errorf("retrieve batch %s: %w", batchID, err)
	}
	state, err := classify(job)
	if err != nil {
		return job, "", err
	}
	return job, state, nil
}

// eachResult streams the successful lines of a completed job's output file.
// Failed and undecodable lines are logged and skipped.
func (r *batchRunner) eachResult(ctx context.Context, job *model.BatchJob, fn func(line model.BatchResultLine) error) error {
	logger := logutil.GetLogger(ctx).With(zap.String("batch_id", job.ID))
	if job.OutputFileID == "" {
		logger.Warn("completed batch has no output file", zap.String("error_file_id", job.ErrorFileID))
		return nil
	}
	rc, err := r.client.DownloadFile(ctx, job.OutputFileID)
	if err != nil {
		return fmt.Errorf("download batch output %s: %w", job.OutputFileID, err)
	}
	defer rc.Close()
	return artifact.DecodeLines(rc, func(line model.BatchResultLine) error {
		if !line.Succeeded() {
			status := 0
			if line.Response != nil {
				status = line.Response.StatusCode
			}
			logger.Warn("skip failed batch result", zap.String("custom_id", line.CustomID), zap.Int("status_code", status))
			return nil
		}
		return fn(line)
	}, func(lineNo int, err error) {
		logger.Warn("skip malformed batch result line", zap.Int("line", lineNo), zap.Error(err))
	})
}
