package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrNotFound
	ErrInvalid
	ErrInternal
	ErrBatchFailed
	ErrEmptyBatch
	ErrUnknownFunction
	ErrUnavailable
)
