package job

import (
	"context"

	"github.com/xxxsen/wellmeet-pipeline/internal/service"
)

type OutboxRelayJob struct {
	outbox *service.OutboxService
}

func NewOutboxRelayJob(outbox *service.OutboxService) *OutboxRelayJob {
	return &OutboxRelayJob{outbox: outbox}
}

func (j *OutboxRelayJob) Name() string {
	return "outbox_relay"
}

func (j *OutboxRelayJob) Run(ctx context.Context) error {
	if j.outbox == nil {
		return nil
	}
	_, err := j.outbox.Relay(ctx)
	return err
}
