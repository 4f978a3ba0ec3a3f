package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type blockingJob struct {
	runs    atomic.Int32
	release chan struct{}
}

func (j *blockingJob) Name() string { return "blocking" }

func (j *blockingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	<-j.release
	return nil
}

func TestCronScheduler_RejectsBadSpec(t *testing.T) {
	s := NewCronScheduler()
	require.Error(t, s.AddJob(&blockingJob{}, "not a spec"))
	require.NoError(t, s.AddJob(&blockingJob{}, "0 * * * *"))
	require.NoError(t, s.AddJob(&blockingJob{}, "@hourly"))
	require.Error(t, s.RunNow("missing"))
}

func TestCronScheduler_SkipsOverlappingRuns(t *testing.T) {
	s := NewCronScheduler()
	job := &blockingJob{release: make(chan struct{})}
	run := s.wrap(job, "* * * * *")

	done := make(chan struct{})
	go func() {
		run()
		close(done)
	}()
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	run()
	require.Equal(t, int32(1), job.runs.Load())
	close(job.release)
	<-done
}

type ctxKey struct{}

type contextJob struct {
	seen chan context.Context
}

func (j *contextJob) Name() string { return "context" }

func (j *contextJob) Run(ctx context.Context) error {
	j.seen <- ctx
	return nil
}

func TestCronScheduler_RunNowUsesStartContext(t *testing.T) {
	s := NewCronScheduler()
	job := &contextJob{seen: make(chan context.Context, 1)}
	require.NoError(t, s.AddJob(job, "@hourly"))
	require.Error(t, s.RunNow(job.Name()))

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "serve"))
	s.Start(ctx)
	defer s.Stop()
	require.NoError(t, s.RunNow(job.Name()))

	var got context.Context
	select {
	case got = <-job.seen:
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}
	require.Equal(t, "serve", got.Value(ctxKey{}))
	cancel()
	require.ErrorIs(t, got.Err(), context.Canceled)
}
