package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dggpoliticalaction/greeter/internal/application/ports"
	"github.com/dggpoliticalaction/greeter/internal/domain"
)

// ErrDeferrerStopped is returned by Schedule after Stop.
var ErrDeferrerStopped = errors.New("deferrer stopped")

// fireTimeout bounds the provider work a single fired task may do.
const fireTimeout = 2 * time.Minute

// TimerDeferrer runs deferred tasks in-process on timers. Pending tasks are lost on
// restart.
type TimerDeferrer struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	handler ports.DeferredHandler
	stopped bool
	log     zerolog.Logger
}

// NewTimerDeferrer returns a TimerDeferrer. Register the handler with Handle
// before scheduling.
func NewTimerDeferrer(log zerolog.Logger) *TimerDeferrer {
	return &TimerDeferrer{
		timers: make(map[string]*time.Timer),
		log:    log.With().Str("component", "timer_deferrer").Logger(),
	}
}

// Handle sets the function fired tasks are delivered to.
func (d *TimerDeferrer) Handle(h ports.DeferredHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = h
}

func (d *TimerDeferrer) Schedule(ctx context.Context, delay time.Duration, task domain.DeferredTask) (string, error) {
	handle := task.Key.String() + ":" + task.Token
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return "", ErrDeferrerStopped
	}
	if old, ok := d.timers[handle]; ok {
		old.Stop()
	}
	d.timers[handle] = time.AfterFunc(delay, func() { d.fire(handle, task) })
	return handle, nil
}

func (d *TimerDeferrer) Cancel(ctx context.Context, handle string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[handle]; ok {
		t.Stop()
		delete(d.timers, handle)
	}
	return nil
}

// Len returns the number of scheduled, unfired tasks.
func (d *TimerDeferrer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Stop cancels every scheduled task and rejects new ones.
func (d *TimerDeferrer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for h, t := range d.timers {
		t.Stop()
		delete(d.timers, h)
	}
}

func (d *TimerDeferrer) fire(handle string, task domain.DeferredTask) {
	d.mu.Lock()
	if _, ok := d.timers[handle]; !ok {
		d.mu.Unlock()
		return
	}
	delete(d.timers, handle)
	h := d.handler
	d.mu.Unlock()

	if h == nil {
		d.log.Warn().Str("key", task.Key.String()).Msg("deferred task fired with no handler")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()
	h(ctx, task)
}

var _ ports.Deferrer = (*TimerDeferrer)(nil)
