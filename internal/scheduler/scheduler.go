// Package scheduler runs recurring jobs (analysis polling, brightness
// sampling) on a shared cron instance.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a handle to a recurring job.
type Job interface {
	// Stop removes the job. Runs already in progress are not interrupted.
	Stop()
}

// Scheduler owns a cron instance shared by every recurring job.
type Scheduler struct {
	cron *cron.Cron
}

// New creates a scheduler. Jobs do not run until Start is called.
func New() *Scheduler {
	logger := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger)),
		),
	}
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started")
}

// Stop halts the scheduler. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	slog.Info("scheduler stopping")
	return s.cron.Stop()
}

// Every runs fn every interval until the returned Job is stopped. The first
// run happens one interval from now. Cron granularity is one second.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) Job {
	id := s.cron.Schedule(cron.Every(interval), cron.FuncJob(fn))
	slog.Debug("job scheduled", "job", name, "interval", interval, "entry", id)
	return &entry{scheduler: s, id: id, name: name}
}

type entry struct {
	scheduler *Scheduler
	id        cron.EntryID
	name      string
}

func (e *entry) Stop() {
	e.scheduler.cron.Remove(e.id)
	slog.Debug("job stopped", "job", e.name, "entry", e.id)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
