package schedule

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	RunNow(name string) error
	Start(ctx context.Context)
	Stop()
}

// CronScheduler runs jobs on five-field cron specs or descriptors such as
// "@hourly". A tick that fires while the previous run of the same job is
// still active is skipped.
type CronScheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	started bool

	mu      sync.Mutex
	entries map[string]cron.EntryID
	runs    map[string]func()
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &CronScheduler{
		cron:    cron.New(cron.WithParser(parser)),
		ctx:     context.Background(),
		entries: make(map[string]cron.EntryID),
		runs:    make(map[string]func()),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", name), zap.String("spec", spec))
	run := c.wrap(job, spec)
	entryID, err := c.cron.AddFunc(spec, run)
	if err != nil {
		logger.Error("schedule job failed", zap.Error(err))
		return err
	}
	c.mu.Lock()
	c.entries[name] = entryID
	c.runs[name] = run
	c.mu.Unlock()
	logger.Info("job scheduled")
	return nil
}

// RunNow triggers a scheduled job in the background outside its schedule.
// The scheduler must be started so the run gets the Start context.
func (c *CronScheduler) RunNow(name string) error {
	c.mu.Lock()
	run, ok := c.runs[name]
	started := c.started
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s is not scheduled", name)
	}
	if !started {
		return fmt.Errorf("job %s: scheduler not started", name)
	}
	go run()
	return nil
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	c.ctx = ctx
	c.started = true
	c.mu.Unlock()
	c.cron.Start()
}

func (c *CronScheduler) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

func (c *CronScheduler) runContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

func (c *CronScheduler) wrap(job Job, spec string) func() {
	var running atomic.Bool
	return func() {
		ctx := c.runContext()
		logger := logutil.GetLogger(ctx).With(
			zap.String("job", job.Name()),
			zap.String("spec", spec),
		)
		if !running.CompareAndSwap(false, true) {
			logger.Info("job skipped: still running")
			return
		}
		defer running.Store(false)

		start := time.Now()
		logger.Info("job started")
		err := job.Run(ctx)
		elapsed := time.Since(start)
		if err != nil {
			logger.Error("job finished", zap.Error(err), zap.Duration("duration", elapsed))
			return
		}
		logger.Info("job finished", zap.Duration("duration", elapsed))
	}
}
