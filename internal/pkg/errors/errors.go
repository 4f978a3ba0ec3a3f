package errors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalid         = errors.New("invalid")
	ErrBatchFailed     = errors.New("batch job failed")
	ErrEmptyBatch      = errors.New("batch has no requests")
	ErrUnknownFunction = errors.New("unknown function")
	ErrUnavailable     = errors.New("dependency not configured")
)
