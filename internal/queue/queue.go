package queue

import (
	"context"

	"github.com/xxxsen/wellmeet-pipeline/internal/model"
)

// Sender publishes one message body to a queue.
type Sender interface {
	Send(ctx context.Context, queueURL string, body []byte) (string, error)
}

// JobSubmitter starts the downstream work for one dispatched identifier.
type JobSubmitter interface {
	Submit(ctx context.Context, unit model.WorkUnit) (string, error)
}
