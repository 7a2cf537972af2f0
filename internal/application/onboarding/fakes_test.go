package onboarding

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dggpoliticalaction/greeter/internal/application/ports"
	"github.com/dggpoliticalaction/greeter/internal/domain"
)

type scheduledTask struct {
	handle string
	due    time.Duration
	task   domain.DeferredTask
}

// manualDeferrer fires tasks when the test advances its virtual clock.
type manualDeferrer struct {
	mu        sync.Mutex
	elapsed   time.Duration
	tasks     map[string]scheduledTask
	scheduled []domain.DeferredTask
	next      int
	handler   ports.DeferredHandler
	failWith  error
	cancelErr error
}

func newManualDeferrer() *manualDeferrer {
	return &manualDeferrer{tasks: make(map[string]scheduledTask)}
}

func (d *manualDeferrer) Schedule(ctx context.Context, delay time.Duration, task domain.DeferredTask) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return "", d.failWith
	}
	d.next++
	h := "h" + strconv.Itoa(d.next)
	d.tasks[h] = scheduledTask{handle: h, due: d.elapsed + delay, task: task}
	d.scheduled = append(d.scheduled, task)
	return h, nil
}

func (d *manualDeferrer) Cancel(ctx context.Context, handle string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancelErr != nil {
		return d.cancelErr
	}
	delete(d.tasks, handle)
	return nil
}

// Advance moves the clock forward and fires every task that became due.
func (d *manualDeferrer) Advance(ctx context.Context, by time.Duration) {
	d.mu.Lock()
	d.elapsed += by
	var due []scheduledTask
	for h, st := range d.tasks {
		if st.due <= d.elapsed {
			due = append(due, st)
			delete(d.tasks, h)
		}
	}
	handler := d.handler
	d.mu.Unlock()
	sort.Slice(due, func(i, j int) bool { return due[i].due < due[j].due })
	for _, st := range due {
		handler(ctx, st.task)
	}
}

func (d *manualDeferrer) Scheduled() []domain.DeferredTask {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.DeferredTask(nil), d.scheduled...)
}

type fakeCreator struct {
	mu     sync.Mutex
	calls  []domain.Member
	err    error
	panics bool
	onCall func(member domain.Member)
}

func (c *fakeCreator) CreateThread(ctx context.Context, member domain.Member) (*domain.Thread, error) {
	c.mu.Lock()
	c.calls = append(c.calls, member)
	onCall, err, panics := c.onCall, c.err, c.panics
	c.mu.Unlock()
	if onCall != nil {
		onCall(member)
	}
	if panics {
		panic("provider exploded")
	}
	if err != nil {
		return nil, err
	}
	return &domain.Thread{ID: "t-" + member.ID, Name: "welcome-" + member.Username}, nil
}

func (c *fakeCreator) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type recordingOnboarder struct {
	queued    []string
	cancelled []string
	left      []string
	queueErr  error
}

func (r *recordingOnboarder) Queue(ctx context.Context, member domain.Member, team, roleID string) error {
	r.queued = append(r.queued, member.ID+"/"+team+"/"+roleID)
	return r.queueErr
}

func (r *recordingOnboarder) Cancel(ctx context.Context, guildID, memberID, roleID string) bool {
	r.cancelled = append(r.cancelled, memberID+"/"+roleID)
	return true
}

func (r *recordingOnboarder) CancelAllForMember(ctx context.Context, guildID, memberID string) int {
	r.left = append(r.left, memberID)
	return 1
}

// countingLimiter allows the first n events per key.
type countingLimiter struct {
	n    int
	seen map[string]int
}

func (l *countingLimiter) Allow(ctx context.Context, key string) bool {
	if l.seen == nil {
		l.seen = make(map[string]int)
	}
	l.seen[key]++
	return l.seen[key] <= l.n
}

var errScheduleDown = errors.New("redis unavailable")
