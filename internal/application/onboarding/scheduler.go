// Package onboarding turns interest role grants into delayed welcome thread
// creations and cancels them when the role goes away first.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dggpoliticalaction/greeter/internal/application/ports"
	"github.com/dggpoliticalaction/greeter/internal/domain"
	domerrors "github.com/dggpoliticalaction/greeter/internal/domain/errors"
)

// DefaultDelay is how long a role must be held before its welcome thread is created.
const DefaultDelay = 7 * time.Second

// ThreadCreator provisions a welcome thread for a member.
type ThreadCreator interface {
	CreateThread(ctx context.Context, member domain.Member) (*domain.Thread, error)
}

// Scheduler keeps the table of pending onboardings. Each (guild, member, role)
// key has at most one entry, and an entry is delegated to the ThreadCreator at
// most once: Fire removes it from the table before doing anything else.
type Scheduler struct {
	mu      sync.Mutex
	pending map[domain.PendingKey]*domain.PendingOnboarding

	deferrer ports.Deferrer
	members  ports.MemberDirectory
	creator  ThreadCreator
	emitter  ports.LifecycleEmitter
	delay    time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewScheduler returns a Scheduler. delay <= 0 uses DefaultDelay; emitter may be nil.
// The deferrer must deliver fired tasks to Fire.
func NewScheduler(deferrer ports.Deferrer, members ports.MemberDirectory, creator ThreadCreator, emitter ports.LifecycleEmitter, delay time.Duration, log zerolog.Logger) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Scheduler{
		pending:  make(map[domain.PendingKey]*domain.PendingOnboarding),
		deferrer: deferrer,
		members:  members,
		creator:  creator,
		emitter:  emitter,
		delay:    delay,
		log:      log.With().Str("component", "onboarding").Logger(),
		now:      time.Now,
	}
}

// Queue schedules a welcome thread creation for member after the delay. If one is
// already pending for the same role, Queue logs and returns nil without
// restarting the delay.
func (s *Scheduler) Queue(ctx context.Context, member domain.Member, team, roleID string) error {
	key := domain.PendingKey{GuildID: member.GuildID, MemberID: member.ID, RoleID: roleID}
	log := s.keyLogger(key).With().Str("team", team).Logger()

	s.mu.Lock()
	if _, ok := s.pending[key]; ok {
		s.mu.Unlock()
		log.Info().Err(domerrors.ErrDuplicatePending).Msg("welcome thread creation already pending")
		return nil
	}
	entry := &domain.PendingOnboarding{
		Key:         key,
		TeamName:    team,
		ScheduledAt: s.now(),
		Token:       uuid.NewString(),
	}
	// Reserve the key before scheduling so a concurrent Queue short-circuits.
	s.pending[key] = entry
	s.mu.Unlock()

	handle, err := s.deferrer.Schedule(ctx, s.delay, domain.DeferredTask{Key: key, TeamName: team, Token: entry.Token})

	s.mu.Lock()
	current, stillPending := s.pending[key]
	stillPending = stillPending && current == entry
	if err != nil {
		if stillPending {
			delete(s.pending, key)
		}
		s.mu.Unlock()
		log.Error().Err(err).Msg("schedule welcome thread creation failed")
		return fmt.Errorf("schedule welcome thread creation: %w", err)
	}
	if stillPending {
		entry.Handle = handle
	}
	s.mu.Unlock()

	if !stillPending {
		// Cancelled or fired while the deferrer was scheduling; the token keeps a
		// late fire harmless, this just frees the deferrer's slot.
		_ = s.deferrer.Cancel(ctx, handle)
		return nil
	}

	log.Info().Dur("delay", s.delay).Msg("queued welcome thread creation")
	s.emit(ctx, domain.LifecycleEvent{Type: domain.EventQueued, GuildID: key.GuildID, MemberID: key.MemberID, RoleID: key.RoleID, TeamName: team})
	return nil
}

// Cancel drops the pending creation for the key. It returns false when nothing was
// pending, including when the creation has already fired.
func (s *Scheduler) Cancel(ctx context.Context, guildID, memberID, roleID string) bool {
	key := domain.PendingKey{GuildID: guildID, MemberID: memberID, RoleID: roleID}
	s.mu.Lock()
	entry, ok := s.pending[key]
	if ok {
		delete(s.pending, key)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.cancelHandle(ctx, entry)
	log := s.keyLogger(key)
	log.Info().Msg("cancelled pending welcome thread creation")
	s.emit(ctx, domain.LifecycleEvent{Type: domain.EventCancelled, GuildID: guildID, MemberID: memberID, RoleID: roleID, TeamName: entry.TeamName})
	return true
}

// CancelAllForMember drops every pending creation for a member, e.g. when they
// leave the guild, and returns how many were dropped.
func (s *Scheduler) CancelAllForMember(ctx context.Context, guildID, memberID string) int {
	var cancelled []*domain.PendingOnboarding
	s.mu.Lock()
	for key, entry := range s.pending {
		if key.GuildID == guildID && key.MemberID == memberID {
			delete(s.pending, key)
			cancelled = append(cancelled, entry)
		}
	}
	s.mu.Unlock()

	for _, entry := range cancelled {
		s.cancelHandle(ctx, entry)
		s.emit(ctx, domain.LifecycleEvent{Type: domain.EventCancelled, GuildID: guildID, MemberID: memberID, RoleID: entry.Key.RoleID, TeamName: entry.TeamName, Reason: "member left"})
	}
	if len(cancelled) > 0 {
		s.log.Info().Str("guild_id", guildID).Str("member_id", memberID).Int("count", len(cancelled)).
			Msg("cancelled pending welcome thread creations for member")
	}
	return len(cancelled)
}

// HasPendingCreation reports whether a creation is pending for the key.
func (s *Scheduler) HasPendingCreation(guildID, memberID, roleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[domain.PendingKey{GuildID: guildID, MemberID: memberID, RoleID: roleID}]
	return ok
}

// PendingCount returns the number of pending creations.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Pending returns a snapshot of pending creations, oldest first.
func (s *Scheduler) Pending() []domain.PendingOnboarding {
	s.mu.Lock()
	out := make([]domain.PendingOnboarding, 0, len(s.pending))
	for _, entry := range s.pending {
		out = append(out, *entry)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out
}

// Fire runs a deferred creation. It is the ports.DeferredHandler for the
// scheduler's deferrer. A task whose entry is gone, or was replaced by a newer
// scheduling of the same key, is ignored. Errors are logged, never returned.
func (s *Scheduler) Fire(ctx context.Context, task domain.DeferredTask) {
	log := s.keyLogger(task.Key).With().Str("team", task.TeamName).Logger()
	s.mu.Lock()
	entry, ok := s.pending[task.Key]
	if !ok || entry.Token != task.Token {
		s.mu.Unlock()
		log.Debug().Msg("deferred creation no longer pending")
		return
	}
	delete(s.pending, task.Key)
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("welcome thread creation panicked")
		}
	}()
	s.execute(ctx, log, task)
}

func (s *Scheduler) execute(ctx context.Context, log zerolog.Logger, task domain.DeferredTask) {
	member, err := s.members.FetchMember(ctx, task.Key.GuildID, task.Key.MemberID)
	if err != nil {
		log.Error().Err(err).Msg("fetch member for welcome thread creation failed")
		return
	}
	if !member.HasRole(task.Key.RoleID) {
		log.Info().Msg("member no longer has role, skipping welcome thread creation")
		s.emit(ctx, domain.LifecycleEvent{Type: domain.EventSkippedRoleLost, GuildID: task.Key.GuildID, MemberID: task.Key.MemberID, RoleID: task.Key.RoleID, TeamName: task.TeamName})
		return
	}

	thread, err := s.creator.CreateThread(ctx, *member)
	switch {
	case err == nil:
		log.Debug().Str("thread_id", thread.ID).Msg("welcome thread creation completed")
	case errors.Is(err, domerrors.ErrAlreadyActive), errors.Is(err, domerrors.ErrCapacityExceeded):
		log.Info().Err(err).Msg("welcome thread creation rejected")
	case errors.Is(err, domerrors.ErrConfigMissing), errors.Is(err, domerrors.ErrChannelNotFound):
		log.Warn().Err(err).Msg("welcome thread creation aborted")
	default:
		log.Error().Err(err).Msg("welcome thread creation failed")
	}
}

func (s *Scheduler) cancelHandle(ctx context.Context, entry *domain.PendingOnboarding) {
	if entry.Handle == "" {
		return
	}
	if err := s.deferrer.Cancel(ctx, entry.Handle); err != nil {
		log := s.keyLogger(entry.Key)
		log.Warn().Err(err).Msg("cancel deferred creation failed; stale fire will be ignored")
	}
}

func (s *Scheduler) keyLogger(key domain.PendingKey) zerolog.Logger {
	return s.log.With().Str("guild_id", key.GuildID).Str("member_id", key.MemberID).Str("role_id", key.RoleID).Logger()
}

func (s *Scheduler) emit(ctx context.Context, event domain.LifecycleEvent) {
	if s.emitter == nil {
		return
	}
	event.At = s.now()
	if err := s.emitter.Emit(ctx, event); err != nil {
		s.log.Debug().Err(err).Str("event", string(event.Type)).Msg("emit lifecycle event failed")
	}
}
