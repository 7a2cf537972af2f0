// Package jobs runs periodic background work on cron schedules.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Settings control when a job runs.
type Settings struct {
	// Schedule is a cron expression with an optional seconds field.
	Schedule string
	// RunOnce runs the job a single time after InitialDelay instead of on Schedule.
	RunOnce bool
	// InitialDelay holds off the first run after Start.
	InitialDelay time.Duration
	// Log enables start and finish logging for each run.
	Log bool
}

// Task is one unit of job work.
type Task func(ctx context.Context) error

// Runner schedules tasks on a cron engine. Overlapping runs of the same job are skipped.
type Runner struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger
	now    func() time.Time
}

func NewRunner(log zerolog.Logger) *Runner {
	log = log.With().Str("component", "jobs").Logger()
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cron:   cron.New(cron.WithParser(parser), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
		now:    time.Now,
	}
}

// Add registers task under name. The first run is no earlier than InitialDelay after Add.
func (r *Runner) Add(name string, s Settings, task Task) error {
	start := r.now().Add(s.InitialDelay)
	var sched cron.Schedule
	if s.RunOnce {
		sched = &onceSchedule{at: start}
	} else {
		spec, err := parser.Parse(s.Schedule)
		if err != nil {
			return fmt.Errorf("job %s: parse schedule %q: %w", name, s.Schedule, err)
		}
		sched = delayedSchedule{Schedule: spec, start: start}
	}
	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger{log: r.log})).Then(r.wrap(name, s.Log, task))
	r.cron.Schedule(sched, job)
	r.log.Info().Str("job", name).Str("schedule", s.Schedule).Bool("run_once", s.RunOnce).
		Dur("initial_delay", s.InitialDelay).Msg("job scheduled")
	return nil
}

func (r *Runner) wrap(name string, logRuns bool, task Task) cron.Job {
	return cron.FuncJob(func() {
		log := r.log.With().Str("job", name).Str("run_id", uuid.NewString()).Logger()
		started := r.now()
		if logRuns {
			log.Info().Msg("job started")
		}
		err := task(log.WithContext(r.ctx))
		if err != nil {
			log.Error().Err(err).Dur("took", r.now().Sub(started)).Msg("job failed")
			return
		}
		if logRuns {
			log.Info().Dur("took", r.now().Sub(started)).Msg("job finished")
		}
	})
}

// Start runs the cron engine in its own goroutine.
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop prevents new runs, cancels the running ones' context and waits for them
// to return or for ctx to end.
func (r *Runner) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	r.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
