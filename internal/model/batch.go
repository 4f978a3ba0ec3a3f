package model

import "encoding/json"

type BatchStatus string

const (
	BatchStatusValidating BatchStatus = "validating"
	BatchStatusInProgress BatchStatus = "in_progress"
	BatchStatusFinalizing BatchStatus = "finalizing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
	BatchStatusExpired    BatchStatus = "expired"
	BatchStatusCancelling BatchStatus = "cancelling"
	BatchStatusCancelled  BatchStatus = "cancelled"
	BatchStatusUnknown    BatchStatus = "unknown"
)

func ParseBatchStatus(s string) BatchStatus {
	switch st := BatchStatus(s); st {
	case BatchStatusValidating, BatchStatusInProgress, BatchStatusFinalizing,
		BatchStatusCompleted, BatchStatusFailed, BatchStatusExpired,
		BatchStatusCancelling, BatchStatusCancelled:
		return st
	default:
		return BatchStatusUnknown
	}
}

// Pending reports whether the job is still being worked on by the API and
// should be polled again later.
func (s BatchStatus) Pending() bool {
	switch s {
	case BatchStatusValidating, BatchStatusInProgress, BatchStatusFinalizing:
		return true
	}
	return false
}

func (s BatchStatus) Completed() bool {
	return s == BatchStatusCompleted
}

type BatchEndpoint string

const (
	EndpointChatCompletions BatchEndpoint = "/v1/chat/completions"
	EndpointEmbeddings      BatchEndpoint = "/v1/embeddings"
)

// BatchJob is a handle to an asynchronous inference job. It is owned by the
// inference API and only ever read here.
type BatchJob struct {
	ID           string      `json:"batch_id"`
	Status       BatchStatus `json:"status"`
	OutputFileID string      `json:"output_file_id,omitempty"`
	ErrorFileID  string      `json:"error_file_id,omitempty"`
}

// BatchResultLine is one line of a batch output file.
type BatchResultLine struct {
	CustomID string               `json:"custom_id"`
	Response *BatchResultResponse `json:"response"`
	Error    *BatchResultError    `json:"error"`
}

type BatchResultResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
}

type BatchResultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Succeeded reports whether the line carries a usable response body.
func (l *BatchResultLine) Succeeded() bool {
	return l.Response != nil && l.Response.StatusCode == 200 && len(l.Response.Body) > 0
}
