// Package threads manages welcome threads in the configured welcome channel:
// discovery, capacity limits, eviction of old threads and provisioning of new ones.
package threads

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dggpoliticalaction/greeter/internal/application/ports"
	"github.com/dggpoliticalaction/greeter/internal/domain"
	domerrors "github.com/dggpoliticalaction/greeter/internal/domain/errors"
)

const (
	threadNamePrefix = "welcome-"
	maxThreadNameLen = 100
)

var threadNameDisallowed = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// ThreadName returns the welcome thread name for a member handle.
func ThreadName(username string) string {
	name := threadNameDisallowed.ReplaceAllString(threadNamePrefix+username, "-")
	if len(name) > maxThreadNameLen {
		name = name[:maxThreadNameLen]
	}
	return name
}

// Manager creates, discovers, caps and evicts welcome threads.
type Manager struct {
	provider ports.ThreadProvider
	members  ports.MemberDirectory
	cfg      *domain.WelcomeThreadConfig
	emitter  ports.LifecycleEmitter
	log      zerolog.Logger
	now      func() time.Time
}

// NewManager returns a Manager. cfg nil means the welcome channel is not configured;
// every creation then aborts with ErrConfigMissing. emitter may be nil.
func NewManager(provider ports.ThreadProvider, members ports.MemberDirectory, cfg *domain.WelcomeThreadConfig, emitter ports.LifecycleEmitter, log zerolog.Logger) *Manager {
	return &Manager{
		provider: provider,
		members:  members,
		cfg:      cfg,
		emitter:  emitter,
		log:      log.With().Str("component", "threads").Logger(),
		now:      time.Now,
	}
}

// FindWelcomeChannel looks up the configured channel by name, ignoring case.
func (m *Manager) FindWelcomeChannel(ctx context.Context, guildID string) (*domain.Channel, error) {
	if m.cfg == nil {
		return nil, domerrors.ErrConfigMissing
	}
	channels, err := m.provider.GuildTextChannels(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("%w: list channels: %v", domerrors.ErrProviderFailed, err)
	}
	for i := range channels {
		if strings.EqualFold(channels[i].Name, m.cfg.ChannelName) {
			ch := channels[i]
			return &ch, nil
		}
	}
	return nil, domerrors.ErrChannelNotFound
}

// ActiveThreadCount counts non-archived threads in channel.
func (m *Manager) ActiveThreadCount(ctx context.Context, channel domain.Channel) (int, error) {
	active, err := m.activeThreads(ctx, channel)
	if err != nil {
		return 0, err
	}
	return len(active), nil
}

// MemberHasActiveThread reports whether memberID belongs to any active thread in
// channel. Threads whose members cannot be read are skipped.
func (m *Manager) MemberHasActiveThread(ctx context.Context, channel domain.Channel, memberID string) (bool, error) {
	active, err := m.activeThreads(ctx, channel)
	if err != nil {
		return false, err
	}
	return m.anyThreadHasMember(ctx, active, memberID), nil
}

// ListAllThreads returns active threads plus every archived private thread.
func (m *Manager) ListAllThreads(ctx context.Context, channel domain.Channel) ([]domain.Thread, error) {
	active, err := m.activeThreads(ctx, channel)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(active))
	all := make([]domain.Thread, 0, len(active))
	for _, t := range active {
		seen[t.ID] = struct{}{}
		all = append(all, t)
	}

	var before *time.Time
	for {
		page, err := m.provider.ListArchivedThreadsPage(ctx, channel, before)
		if err != nil {
			return nil, fmt.Errorf("%w: list archived threads: %v", domerrors.ErrProviderFailed, err)
		}
		added := 0
		for _, t := range page.Threads {
			if _, ok := seen[t.ID]; ok {
				continue
			}
			seen[t.ID] = struct{}{}
			all = append(all, t)
			added++
			if t.ArchivedAt != nil && (before == nil || t.ArchivedAt.Before(*before)) {
				at := *t.ArchivedAt
				before = &at
			}
		}
		if !page.HasMore || added == 0 || before == nil {
			break
		}
	}
	return all, nil
}

// EnforceTotalCap deletes the oldest threads in channel until there is room for one
// more under maxTotal. It returns how many threads were deleted. A failed delete is
// logged and the remaining deletions still run.
func (m *Manager) EnforceTotalCap(ctx context.Context, channel domain.Channel, maxTotal int) (int, error) {
	all, err := m.ListAllThreads(ctx, channel)
	if err != nil {
		return 0, err
	}
	if len(all) < maxTotal {
		return 0, nil
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	reason := fmt.Sprintf("Exceeded max total threads limit of %d", maxTotal)
	toDelete := len(all) - maxTotal + 1
	deleted := 0
	for _, t := range all[:toDelete] {
		m.log.Info().Str("thread_id", t.ID).Str("thread", t.Name).Int("max_total", maxTotal).
			Msg("deleting oldest welcome thread to stay under total thread limit")
		if err := m.provider.DeleteThread(ctx, t.ID, reason); err != nil {
			m.log.Error().Err(err).Str("thread_id", t.ID).Str("thread", t.Name).Msg("delete old welcome thread failed")
			continue
		}
		deleted++
		m.emit(ctx, domain.LifecycleEvent{
			Type:       domain.EventEvicted,
			GuildID:    channel.GuildID,
			ThreadID:   t.ID,
			ThreadName: t.Name,
			Reason:     reason,
		})
	}
	return deleted, nil
}

// CreateThread provisions a private welcome thread for member.
//
// Rejections return a nil thread and one of ErrConfigMissing, ErrChannelNotFound,
// ErrCapacityExceeded or ErrAlreadyActive; nothing is created in those cases.
// Failure to create the thread or to add the member returns ErrProviderFailed,
// after deleting a half-created thread. Failures while adding helpers or posting
// the welcome message are logged and the thread is still returned.
func (m *Manager) CreateThread(ctx context.Context, member domain.Member) (*domain.Thread, error) {
	log := m.log.With().Str("guild_id", member.GuildID).Str("member_id", member.ID).Logger()
	if m.cfg == nil {
		log.Warn().Msg("welcome thread config (welcomeThread.channelName) is missing")
		return nil, domerrors.ErrConfigMissing
	}

	channel, err := m.FindWelcomeChannel(ctx, member.GuildID)
	if err != nil {
		if errors.Is(err, domerrors.ErrChannelNotFound) {
			log.Warn().Str("channel", m.cfg.ChannelName).Msg("welcome channel not found")
		}
		return nil, err
	}

	active, err := m.activeThreads(ctx, *channel)
	if err != nil {
		return nil, err
	}
	if len(active) >= m.cfg.MaxActiveThreads {
		log.Warn().Int("active", len(active)).Int("max_active", m.cfg.MaxActiveThreads).Msg("welcome thread cap reached")
		m.emit(ctx, domain.LifecycleEvent{
			Type:     domain.EventRejectedCapacity,
			GuildID:  member.GuildID,
			MemberID: member.ID,
			Reason:   fmt.Sprintf("%d/%d active threads", len(active), m.cfg.MaxActiveThreads),
		})
		return nil, domerrors.ErrCapacityExceeded
	}

	if m.anyThreadHasMember(ctx, active, member.ID) {
		log.Info().Str("username", member.Username).Msg("member already has an active welcome thread, skipping")
		m.emit(ctx, domain.LifecycleEvent{Type: domain.EventRejectedDuplicate, GuildID: member.GuildID, MemberID: member.ID})
		return nil, domerrors.ErrAlreadyActive
	}

	if _, err := m.EnforceTotalCap(ctx, *channel, m.cfg.MaxTotalThreads); err != nil {
		return nil, err
	}

	name := ThreadName(member.Username)
	thread, err := m.provider.CreatePrivateThread(ctx, *channel, name, "Welcome thread for "+member.Username)
	if err != nil {
		log.Error().Err(err).Str("thread", name).Msg("create welcome thread failed")
		return nil, fmt.Errorf("%w: create thread: %v", domerrors.ErrProviderFailed, err)
	}
	log = log.With().Str("thread_id", thread.ID).Logger()

	if err := m.provider.AddThreadMember(ctx, thread.ID, member.ID); err != nil {
		log.Error().Err(err).Msg("add member to welcome thread failed")
		if derr := m.provider.DeleteThread(ctx, thread.ID, "Failed to add member"); derr != nil {
			log.Debug().Err(derr).Msg("cleanup of half-created welcome thread failed")
		}
		return nil, fmt.Errorf("%w: add member: %v", domerrors.ErrProviderFailed, err)
	}

	added := m.addHelpers(ctx, log, thread.ID, member)

	if err := m.provider.SendThreadMessage(ctx, thread.ID, m.cfg.WelcomeMessage); err != nil {
		log.Error().Err(err).Msg("send welcome message failed")
	}

	log.Info().Str("thread", thread.Name).Int("helpers", added).Msg("created welcome thread")
	m.emit(ctx, domain.LifecycleEvent{
		Type:       domain.EventCreated,
		GuildID:    member.GuildID,
		MemberID:   member.ID,
		ThreadID:   thread.ID,
		ThreadName: thread.Name,
	})
	return thread, nil
}

// HelperRoster returns the IDs of non-bot members holding the welcome team,
// moderator or director role, excluding member itself. Role names that do not
// resolve in the guild are skipped.
func (m *Manager) HelperRoster(ctx context.Context, member domain.Member) ([]string, error) {
	if m.cfg == nil {
		return nil, domerrors.ErrConfigMissing
	}
	roles, err := m.members.GuildRoles(ctx, member.GuildID)
	if err != nil {
		return nil, fmt.Errorf("%w: list roles: %v", domerrors.ErrProviderFailed, err)
	}
	wanted := make(map[string]struct{}, 3)
	for _, name := range []string{m.cfg.WelcomeTeamRoleName, m.cfg.ModRoleName, m.cfg.DirectorRoleName} {
		for _, r := range roles {
			if r.Name == name {
				wanted[r.ID] = struct{}{}
				break
			}
		}
	}
	if len(wanted) == 0 {
		return nil, nil
	}

	all, err := m.members.FetchGuildMembers(ctx, member.GuildID)
	if err != nil {
		return nil, fmt.Errorf("%w: list members: %v", domerrors.ErrProviderFailed, err)
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, gm := range all {
		if gm.Bot || gm.ID == member.ID {
			continue
		}
		if _, dup := seen[gm.ID]; dup {
			continue
		}
		for _, rid := range gm.RoleIDs {
			if _, ok := wanted[rid]; ok {
				seen[gm.ID] = struct{}{}
				ids = append(ids, gm.ID)
				break
			}
		}
	}
	return ids, nil
}

func (m *Manager) addHelpers(ctx context.Context, log zerolog.Logger, threadID string, member domain.Member) int {
	ids, err := m.HelperRoster(ctx, member)
	if err != nil {
		log.Warn().Err(err).Msg("resolve helper roster failed; thread has no helpers")
		return 0
	}
	added := 0
	for _, id := range ids {
		if err := m.provider.AddThreadMember(ctx, threadID, id); err != nil {
			log.Debug().Err(err).Str("helper_id", id).Msg("skip helper")
			continue
		}
		added++
	}
	return added
}

func (m *Manager) activeThreads(ctx context.Context, channel domain.Channel) ([]domain.Thread, error) {
	active, err := m.provider.ListActiveThreads(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("%w: list active threads: %v", domerrors.ErrProviderFailed, err)
	}
	return active, nil
}

func (m *Manager) anyThreadHasMember(ctx context.Context, threads []domain.Thread, memberID string) bool {
	for _, t := range threads {
		ids, err := m.provider.ThreadMemberIDs(ctx, t.ID)
		if err != nil {
			m.log.Debug().Err(err).Str("thread_id", t.ID).Msg("skip unreadable thread")
			continue
		}
		for _, id := range ids {
			if id == memberID {
				return true
			}
		}
	}
	return false
}

func (m *Manager) emit(ctx context.Context, event domain.LifecycleEvent) {
	if m.emitter == nil {
		return
	}
	if event.At.IsZero() {
		event.At = m.now()
	}
	if err := m.emitter.Emit(ctx, event); err != nil {
		m.log.Debug().Err(err).Str("event", string(event.Type)).Msg("emit lifecycle event failed")
	}
}
