package service

import (
	"fmt"
	"net/http"

	"github.com/xxxsen/wellmeet-pipeline/internal/model"
	appErr "github.com/xxxsen/wellmeet-pipeline/internal/pkg/errors"
)

type State string

const (
	StatePending   State = "pending"
	StateCompleted State = "completed"
)

// Outcome is what a polling stage reports back to the orchestrator. A
// pending batch is not an error: the caller polls again later.
type Outcome struct {
	State       State             `json:"state"`
	StatusCode  int               `json:"statusCode"`
	BatchID     string            `json:"batch_id"`
	BatchStatus model.BatchStatus `json:"batchStatus"`
	ArtifactKey string            `json:"artifactKey,omitempty"`
	NextBatchID string            `json:"nextBatchId,omitempty"`

	// Count is the number of reviews in the merged artifact.
	Count int `json:"count"`
	// Embeddings is the number of vectors attached by an embedding merge.
	Embeddings int `json:"embeddings,omitempty"`
}

type StageResult struct {
	BatchID string `json:"batch_id"`
	Count   int    `json:"count"`
}

func pendingOutcome(job *model.BatchJob) *Outcome {
	return &Outcome{
		State:       StatePending,
		StatusCode:  http.StatusAccepted,
		BatchID:     job.ID,
		BatchStatus: job.Status,
	}
}

func completedOutcome(job *model.BatchJob) *Outcome {
	return &Outcome{
		State:       StateCompleted,
		StatusCode:  http.StatusOK,
		BatchID:     job.ID,
		BatchStatus: job.Status,
	}
}

func classify(job *model.BatchJob) (State, error) {
	switch job.Status {
	case model.BatchStatusValidating, model.BatchStatusInProgress, model.BatchStatusFinalizing:
		return StatePending, nil
	case model.BatchStatusCompleted:
		return StateCompleted, nil
	case model.BatchStatusFailed, model.BatchStatusExpired, model.BatchStatusCancelling,
		model.BatchStatusCancelled, model.BatchStatusUnknown:
		return "", fmt.Errorf("batch %s is %s: %w", job.ID, job.Status, appErr.ErrBatchFailed)
	default:
		return "", fmt.Errorf("batch %s has unrecognized status %q: %w", job.ID, job.Status, appErr.ErrBatchFailed)
	}
}
