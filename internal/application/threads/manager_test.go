package threads

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dggpoliticalaction/greeter/internal/domain"
	domerrors "github.com/dggpoliticalaction/greeter/internal/domain/errors"
	"github.com/dggpoliticalaction/greeter/internal/testutil/chatfake"
)

const (
	guildID   = "g1"
	channelID = "c-welcome"
)

var welcomeChannel = domain.Channel{ID: channelID, GuildID: guildID, Name: "Welcome"}

func testConfig() *domain.WelcomeThreadConfig {
	return &domain.WelcomeThreadConfig{
		ChannelName:         "welcome",
		WelcomeTeamRoleName: "Welcome Team",
		ModRoleName:         "Moderator",
		DirectorRoleName:    "Director",
		MaxActiveThreads:    50,
		MaxTotalThreads:     500,
		InactivityDays:      5,
		WelcomeMessage:      "hello there",
	}
}

type recordingEmitter struct {
	events []domain.LifecycleEvent
}

func (r *recordingEmitter) Emit(ctx context.Context, e domain.LifecycleEvent) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recordingEmitter) types() []domain.LifecycleEventType {
	var out []domain.LifecycleEventType
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func setup(t *testing.T, cfg *domain.WelcomeThreadConfig) (*Manager, *chatfake.Platform, *recordingEmitter) {
	t.Helper()
	p := chatfake.NewPlatform()
	p.AddGuild(guildID, domain.Channel{ID: "c-general", Name: "general"}, welcomeChannel)
	em := &recordingEmitter{}
	return NewManager(p, p, cfg, em, zerolog.Nop()), p, em
}

func newcomer() domain.Member {
	return domain.Member{GuildID: guildID, ID: "u-new", Username: "newbie", RoleIDs: []string{"r-interest"}}
}

func archivedThread(id string, created, archived time.Time) domain.Thread {
	at := archived
	return domain.Thread{ID: id, ParentID: channelID, Name: id, CreatedAt: created, Archived: true, ArchivedAt: &at}
}

func TestThreadName(t *testing.T) {
	assert.Equal(t, "welcome-joe-doe-", ThreadName("joe.doe!"))
	assert.Equal(t, "welcome-a_b-c", ThreadName("a_b-c"))
	assert.Equal(t, "welcome--mlaut", ThreadName("ümlaut"))

	long := ThreadName(strings.Repeat("z", 200))
	assert.Len(t, long, maxThreadNameLen)
	assert.True(t, strings.HasPrefix(long, "welcome-zzz"))
}

func TestFindWelcomeChannel(t *testing.T) {
	ctx := context.Background()
	m, _, _ := setup(t, testConfig())

	ch, err := m.FindWelcomeChannel(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, channelID, ch.ID)

	_, err = m.FindWelcomeChannel(ctx, "other-guild")
	assert.ErrorIs(t, err, domerrors.ErrChannelNotFound)

	unconfigured, _, _ := setup(t, nil)
	_, err = unconfigured.FindWelcomeChannel(ctx, guildID)
	assert.ErrorIs(t, err, domerrors.ErrConfigMissing)
}

func TestCreateThreadWithoutConfig(t *testing.T) {
	m, p, _ := setup(t, nil)
	thread, err := m.CreateThread(context.Background(), newcomer())
	assert.Nil(t, thread)
	assert.ErrorIs(t, err, domerrors.ErrConfigMissing)
	assert.Zero(t, p.Calls(chatfake.OpCreateThread))
}

func TestCreateThreadChannelMissing(t *testing.T) {
	cfg := testConfig()
	cfg.ChannelName = "does-not-exist"
	m, p, _ := setup(t, cfg)
	thread, err := m.CreateThread(context.Background(), newcomer())
	assert.Nil(t, thread)
	assert.ErrorIs(t, err, domerrors.ErrChannelNotFound)
	assert.Zero(t, p.Calls(chatfake.OpCreateThread))
}

func TestCreateThreadProvisionsThread(t *testing.T) {
	ctx := context.Background()
	m, p, em := setup(t, testConfig())
	p.AddRole(guildID, domain.Role{ID: "r-wt", Name: "Welcome Team"})
	p.AddRole(guildID, domain.Role{ID: "r-mod", Name: "Moderator"})
	p.PutMember(domain.Member{GuildID: guildID, ID: "u-helper", RoleIDs: []string{"r-wt"}})
	p.PutMember(domain.Member{GuildID: guildID, ID: "u-mod", RoleIDs: []string{"r-mod", "r-wt"}})
	p.PutMember(domain.Member{GuildID: guildID, ID: "u-bot", Bot: true, RoleIDs: []string{"r-mod"}})
	p.PutMember(domain.Member{GuildID: guildID, ID: "u-bystander", RoleIDs: []string{"r-other"}})
	member := newcomer()
	member.RoleIDs = append(member.RoleIDs, "r-wt")
	p.PutMember(member)

	thread, err := m.CreateThread(ctx, member)
	require.NoError(t, err)
	require.NotNil(t, thread)

	assert.Equal(t, "welcome-newbie", thread.Name)
	assert.Equal(t, []string{"u-new", "u-helper", "u-mod"}, p.Members(thread.ID))
	assert.Equal(t, []string{"hello there"}, p.Messages(thread.ID))
	assert.Equal(t, []domain.LifecycleEventType{domain.EventCreated}, em.types())

	has, err := m.MemberHasActiveThread(ctx, welcomeChannel, member.ID)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, p.DeleteThread(ctx, thread.ID, "test"))
	has, err = m.MemberHasActiveThread(ctx, welcomeChannel, member.ID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestCreateThreadRejectsAtActiveCapWithoutEviction(t *testing.T) {
	cfg := testConfig()
	cfg.MaxActiveThreads = 1
	m, p, em := setup(t, cfg)
	p.AddThread(domain.Thread{ID: "t-existing", ParentID: channelID, CreatedAt: time.Now()}, "u-other")

	thread, err := m.CreateThread(context.Background(), newcomer())
	assert.Nil(t, thread)
	assert.ErrorIs(t, err, domerrors.ErrCapacityExceeded)
	assert.Zero(t, p.Calls(chatfake.OpListArchived), "total cap must not be enforced")
	assert.Zero(t, p.Calls(chatfake.OpDeleteThread))
	assert.Equal(t, 1, p.ThreadCount(channelID, true))
	assert.Equal(t, []domain.LifecycleEventType{domain.EventRejectedCapacity}, em.types())
}

func TestCreateThreadRejectsDuplicate(t *testing.T) {
	m, p, em := setup(t, testConfig())
	p.AddThread(domain.Thread{ID: "t-unreadable", ParentID: channelID}, "u-x")
	p.AddThread(domain.Thread{ID: "t-mine", ParentID: channelID}, "u-new")
	p.FailOn(chatfake.OpThreadMembers, "t-unreadable", errors.New("missing access"))

	thread, err := m.CreateThread(context.Background(), newcomer())
	assert.Nil(t, thread)
	assert.ErrorIs(t, err, domerrors.ErrAlreadyActive)
	assert.Zero(t, p.Calls(chatfake.OpCreateThread))
	assert.Equal(t, []domain.LifecycleEventType{domain.EventRejectedDuplicate}, em.types())
}

func TestCreateThreadEvictsOldestAtTotalCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTotalThreads = 3
	m, p, _ := setup(t, cfg)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.AddThread(domain.Thread{ID: "active", ParentID: channelID, CreatedAt: base.Add(10 * time.Hour)})
	p.AddThread(archivedThread("a1", base.Add(1*time.Hour), base.Add(20*time.Hour)))
	p.AddThread(archivedThread("a2", base.Add(2*time.Hour), base.Add(21*time.Hour)))
	p.AddThread(archivedThread("a3", base.Add(3*time.Hour), base.Add(22*time.Hour)))
	p.AddThread(archivedThread("a4", base.Add(4*time.Hour), base.Add(23*time.Hour)))

	thread, err := m.CreateThread(context.Background(), newcomer())
	require.NoError(t, err)
	require.NotNil(t, thread)

	// total 5, max 3: 5-3+1 = 3 deletions, oldest created first
	assert.Equal(t, []string{"a1", "a2", "a3"}, p.Deleted())
	assert.Equal(t, 3, p.ThreadCount(channelID, false))
}

func TestEnforceTotalCapContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	m, p, em := setup(t, testConfig())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"t1", "t2", "t3", "t4"} {
		p.AddThread(domain.Thread{ID: id, ParentID: channelID, CreatedAt: base.Add(time.Duration(i) * time.Hour)})
	}
	p.FailOn(chatfake.OpDeleteThread, "t1", errors.New("boom"))

	deleted, err := m.EnforceTotalCap(ctx, welcomeChannel, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, []string{"t2", "t3"}, p.Deleted())
	assert.Len(t, em.events, 2)

	deleted, err = m.EnforceTotalCap(ctx, welcomeChannel, 10)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestListAllThreadsPaginatesArchived(t *testing.T) {
	m, p, _ := setup(t, testConfig())
	p.PageSize = 2
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.AddThread(domain.Thread{ID: "active", ParentID: channelID})
	for i, id := range []string{"a1", "a2", "a3", "a4", "a5"} {
		p.AddThread(archivedThread(id, base, base.Add(time.Duration(i)*time.Hour)))
	}
	p.AddThread(domain.Thread{ID: "other-parent", ParentID: "c-general", Archived: true})

	all, err := m.ListAllThreads(context.Background(), welcomeChannel)
	require.NoError(t, err)

	var ids []string
	for _, th := range all {
		ids = append(ids, th.ID)
	}
	assert.ElementsMatch(t, []string{"active", "a1", "a2", "a3", "a4", "a5"}, ids)
	assert.Equal(t, 3, p.Calls(chatfake.OpListArchived))
}

func TestCreateThreadCleansUpWhenMemberAddFails(t *testing.T) {
	m, p, _ := setup(t, testConfig())
	p.FailOn(chatfake.OpAddMember, "u-new", errors.New("unknown member"))

	thread, err := m.CreateThread(context.Background(), newcomer())
	assert.Nil(t, thread)
	assert.ErrorIs(t, err, domerrors.ErrProviderFailed)
	assert.Equal(t, 0, p.ThreadCount(channelID, false))
	assert.Len(t, p.Deleted(), 1)
}

func TestCreateThreadFailsWhenCreateFails(t *testing.T) {
	m, p, em := setup(t, testConfig())
	p.FailOn(chatfake.OpCreateThread, "", errors.New("rate limited"))

	thread, err := m.CreateThread(context.Background(), newcomer())
	assert.Nil(t, thread)
	assert.ErrorIs(t, err, domerrors.ErrProviderFailed)
	assert.Zero(t, p.Calls(chatfake.OpDeleteThread))
	assert.Empty(t, em.events)
}

func TestCreateThreadToleratesHelperAndMessageFailures(t *testing.T) {
	m, p, _ := setup(t, testConfig())
	p.AddRole(guildID, domain.Role{ID: "r-dir", Name: "Director"})
	p.PutMember(domain.Member{GuildID: guildID, ID: "u-gone", RoleIDs: []string{"r-dir"}})
	p.PutMember(domain.Member{GuildID: guildID, ID: "u-dir", RoleIDs: []string{"r-dir"}})
	p.FailOn(chatfake.OpAddMember, "u-gone", errors.New("left server"))
	p.FailOn(chatfake.OpSendMessage, "", errors.New("cannot send"))

	thread, err := m.CreateThread(context.Background(), newcomer())
	require.NoError(t, err)
	require.NotNil(t, thread)
	assert.Equal(t, []string{"u-new", "u-dir"}, p.Members(thread.ID))
	assert.Empty(t, p.Messages(thread.ID))
}

func TestCreateThreadSkipsRosterWhenMembersUnavailable(t *testing.T) {
	m, p, _ := setup(t, testConfig())
	p.AddRole(guildID, domain.Role{ID: "r-wt", Name: "Welcome Team"})
	p.FailOn(chatfake.OpGuildMembers, "", errors.New("intent missing"))

	thread, err := m.CreateThread(context.Background(), newcomer())
	require.NoError(t, err)
	assert.Equal(t, []string{"u-new"}, p.Members(thread.ID))
}

func TestHelperRosterWithNoResolvableRoles(t *testing.T) {
	m, p, _ := setup(t, testConfig())
	p.PutMember(domain.Member{GuildID: guildID, ID: "u-1", RoleIDs: []string{"r-x"}})

	ids, err := m.HelperRoster(context.Background(), newcomer())
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Zero(t, p.Calls(chatfake.OpGuildMembers))
}
