package receivers

import (
	"context"
	"fmt"
	"slices"

	"github.com/robfig/cron/v3"

	"github.com/GoCodeAlone/appserver"
)

// DefaultSchedule is used when CronReceiver has no schedule param.
const DefaultSchedule = "@every 1m"

// Schedules accept an optional leading seconds field and descriptors such as
// @hourly or @every 30s.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// CronReceiver runs the container's worker as a cron job on the receiver's
// schedule param until ctx is done.
type CronReceiver struct {
	container *appserver.Container
	done      chan struct{}
}

// NewCronReceiver creates a CronReceiver.
func NewCronReceiver(_ appserver.InitialContext, c *appserver.Container) (appserver.Receiver, error) {
	return &CronReceiver{container: c, done: make(chan struct{})}, nil
}

// Start parses the schedule, builds the worker and starts the scheduler.
// An invalid schedule or a worker that is not a cron.Job makes it return false.
func (r *CronReceiver) Start(ctx context.Context) bool {
	c := r.container
	logger := c.Logger()

	node, _ := c.ReceiverConfiguration()
	spec := param(node, "schedule", DefaultSchedule)
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		logger.Error("Invalid cron schedule", "container", c.Name(), "schedule", spec, "error", err)
		return false
	}

	job, found, err := build[cron.Job](c, c.WorkerType)
	if err == nil && !found {
		err = fmt.Errorf("%w for %s", ErrNoWorker, CronReceiverType)
	}
	if err != nil {
		logger.Error("Failed to build cron worker", "container", c.Name(), "error", err)
		return false
	}

	cl := cronLogger{logger: logger}
	scheduler := cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	scheduler.Schedule(schedule, job)
	scheduler.Start()

	go func() {
		defer close(r.done)
		<-ctx.Done()
		<-scheduler.Stop().Done()
		logger.Info("Cron receiver stopped", "container", c.Name())
	}()

	logger.Info("Cron receiver scheduled", "container", c.Name(), "schedule", spec)
	return true
}

// Done is closed once the scheduler has stopped and running jobs finished.
func (r *CronReceiver) Done() <-chan struct{} {
	return r.done
}

// cronLogger adapts appserver.Logger to cron.Logger.
type cronLogger struct {
	logger appserver.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, slices.Concat(keysAndValues, []any{"error", err})...)
}

var _ appserver.BackgroundReceiver = (*CronReceiver)(nil)
