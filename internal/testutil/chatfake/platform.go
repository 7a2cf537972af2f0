// Package chatfake is an in-memory chat platform implementing the thread and
// member ports, with per-operation failure injection for tests.
package chatfake

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dggpoliticalaction/greeter/internal/application/ports"
	"github.com/dggpoliticalaction/greeter/internal/domain"
)

// Operation names accepted by FailOn and Calls.
const (
	OpGuildTextChannels = "GuildTextChannels"
	OpListActive        = "ListActiveThreads"
	OpListArchived      = "ListArchivedThreadsPage"
	OpCreateThread      = "CreatePrivateThread"
	OpThreadMembers     = "ThreadMemberIDs"
	OpAddMember         = "AddThreadMember"
	OpSendMessage       = "SendThreadMessage"
	OpDeleteThread      = "DeleteThread"
	OpLastMessage       = "LastMessageTime"
	OpGuildIDs          = "GuildIDs"
	OpGuildMembers      = "FetchGuildMembers"
	OpFetchMember       = "FetchMember"
	OpGuildRoles        = "GuildRoles"
)

type thread struct {
	domain.Thread
	members  []string
	messages []message
}

type message struct {
	content string
	at      time.Time
}

// Platform is a fake guild directory and thread API.
type Platform struct {
	mu       sync.Mutex
	guilds   []string
	channels map[string][]domain.Channel
	members  map[string]map[string]domain.Member
	roles    map[string][]domain.Role
	threads  map[string]*thread
	fail     map[string]error
	calls    map[string]int
	deleted  []string
	nextID   int

	// PageSize bounds archived thread pages. Defaults to 100.
	PageSize int
	// Now stamps created threads and messages. Defaults to time.Now.
	Now func() time.Time
}

// NewPlatform returns an empty platform.
func NewPlatform() *Platform {
	return &Platform{
		channels: make(map[string][]domain.Channel),
		members:  make(map[string]map[string]domain.Member),
		roles:    make(map[string][]domain.Role),
		threads:  make(map[string]*thread),
		fail:     make(map[string]error),
		calls:    make(map[string]int),
		PageSize: 100,
		Now:      time.Now,
	}
}

// AddGuild registers a guild with text channels.
func (p *Platform) AddGuild(guildID string, channels ...domain.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.guilds = append(p.guilds, guildID)
	for _, c := range channels {
		c.GuildID = guildID
		p.channels[guildID] = append(p.channels[guildID], c)
	}
}

// AddRole registers a guild role.
func (p *Platform) AddRole(guildID string, role domain.Role) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles[guildID] = append(p.roles[guildID], role)
}

// PutMember adds or replaces a guild member.
func (p *Platform) PutMember(m domain.Member) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.members[m.GuildID] == nil {
		p.members[m.GuildID] = make(map[string]domain.Member)
	}
	p.members[m.GuildID][m.ID] = m
}

// RemoveRole takes roleID away from a member.
func (p *Platform) RemoveRole(guildID, memberID, roleID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.members[guildID][memberID]
	if !ok {
		return
	}
	kept := make([]string, 0, len(m.RoleIDs))
	for _, id := range m.RoleIDs {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	m.RoleIDs = kept
	p.members[guildID][memberID] = m
}

// AddThread seeds an existing thread with members.
func (p *Platform) AddThread(t domain.Thread, memberIDs ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.threads[t.ID] = &thread{Thread: t, members: append([]string(nil), memberIDs...)}
}

// AddMessage seeds a message in a thread.
func (p *Platform) AddMessage(threadID, content string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.threads[threadID]; ok {
		t.messages = append(t.messages, message{content: content, at: at})
	}
}

// FailOn makes op fail with err. With a target, only calls for that thread,
// guild or member ID fail ("AddThreadMember" targets the member ID).
func (p *Platform) FailOn(op, target string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[failKey(op, target)] = err
}

// Calls returns how many times op was invoked.
func (p *Platform) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// Deleted returns deleted thread IDs in deletion order.
func (p *Platform) Deleted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.deleted...)
}

// Thread returns a thread and whether it exists.
func (p *Platform) Thread(id string) (domain.Thread, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.threads[id]
	if !ok {
		return domain.Thread{}, false
	}
	return t.Thread, true
}

// ThreadCount counts threads under channelID; activeOnly skips archived ones.
func (p *Platform) ThreadCount(channelID string, activeOnly bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.threads {
		if t.ParentID == channelID && (!activeOnly || !t.Archived) {
			n++
		}
	}
	return n
}

// Members returns the member IDs of a thread.
func (p *Platform) Members(threadID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.threads[threadID]; ok {
		return append([]string(nil), t.members...)
	}
	return nil
}

// Messages returns the contents posted to a thread, oldest first.
func (p *Platform) Messages(threadID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.threads[threadID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(t.messages))
	for _, m := range t.messages {
		out = append(out, m.content)
	}
	return out
}

func failKey(op, target string) string {
	if target == "" {
		return op
	}
	return op + ":" + target
}

// enter records a call and returns the injected failure, if any. Caller holds mu.
func (p *Platform) enter(op, target string) error {
	p.calls[op]++
	if err, ok := p.fail[failKey(op, target)]; ok {
		return err
	}
	return p.fail[op]
}

func (p *Platform) GuildTextChannels(ctx context.Context, guildID string) ([]domain.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpGuildTextChannels, guildID); err != nil {
		return nil, err
	}
	return append([]domain.Channel(nil), p.channels[guildID]...), nil
}

func (p *Platform) ListActiveThreads(ctx context.Context, channel domain.Channel) ([]domain.Thread, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpListActive, channel.ID); err != nil {
		return nil, err
	}
	var out []domain.Thread
	for _, t := range p.sortedThreads() {
		if t.ParentID == channel.ID && !t.Archived {
			out = append(out, t.Thread)
		}
	}
	return out, nil
}

func (p *Platform) ListArchivedThreadsPage(ctx context.Context, channel domain.Channel, before *time.Time) (domain.ThreadPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpListArchived, channel.ID); err != nil {
		return domain.ThreadPage{}, err
	}
	var matched []domain.Thread
	for _, t := range p.threads {
		if t.ParentID != channel.ID || !t.Archived || t.ArchivedAt == nil {
			continue
		}
		if before != nil && !t.ArchivedAt.Before(*before) {
			continue
		}
		matched = append(matched, t.Thread)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ArchivedAt.After(*matched[j].ArchivedAt) })
	page := domain.ThreadPage{Threads: matched}
	if p.PageSize > 0 && len(matched) > p.PageSize {
		page.Threads = matched[:p.PageSize]
		page.HasMore = true
	}
	return page, nil
}

func (p *Platform) CreatePrivateThread(ctx context.Context, channel domain.Channel, name, reason string) (*domain.Thread, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpCreateThread, channel.ID); err != nil {
		return nil, err
	}
	p.nextID++
	t := domain.Thread{
		ID:        "created-" + strconv.Itoa(p.nextID),
		ParentID:  channel.ID,
		Name:      name,
		CreatedAt: p.Now(),
	}
	p.threads[t.ID] = &thread{Thread: t}
	return &t, nil
}

func (p *Platform) ThreadMemberIDs(ctx context.Context, threadID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpThreadMembers, threadID); err != nil {
		return nil, err
	}
	t, ok := p.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("unknown thread %s", threadID)
	}
	return append([]string(nil), t.members...), nil
}

func (p *Platform) AddThreadMember(ctx context.Context, threadID, memberID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpAddMember, memberID); err != nil {
		return err
	}
	t, ok := p.threads[threadID]
	if !ok {
		return fmt.Errorf("unknown thread %s", threadID)
	}
	t.members = append(t.members, memberID)
	return nil
}

func (p *Platform) SendThreadMessage(ctx context.Context, threadID, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpSendMessage, threadID); err != nil {
		return err
	}
	t, ok := p.threads[threadID]
	if !ok {
		return fmt.Errorf("unknown thread %s", threadID)
	}
	t.messages = append(t.messages, message{content: content, at: p.Now()})
	return nil
}

func (p *Platform) DeleteThread(ctx context.Context, threadID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpDeleteThread, threadID); err != nil {
		return err
	}
	if _, ok := p.threads[threadID]; !ok {
		return fmt.Errorf("unknown thread %s", threadID)
	}
	delete(p.threads, threadID)
	p.deleted = append(p.deleted, threadID)
	return nil
}

func (p *Platform) LastMessageTime(ctx context.Context, threadID string) (*time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpLastMessage, threadID); err != nil {
		return nil, err
	}
	t, ok := p.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("unknown thread %s", threadID)
	}
	var last *time.Time
	for i := range t.messages {
		at := t.messages[i].at
		if last == nil || at.After(*last) {
			last = &at
		}
	}
	return last, nil
}

func (p *Platform) GuildIDs(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpGuildIDs, ""); err != nil {
		return nil, err
	}
	return append([]string(nil), p.guilds...), nil
}

func (p *Platform) FetchGuildMembers(ctx context.Context, guildID string) ([]domain.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpGuildMembers, guildID); err != nil {
		return nil, err
	}
	out := make([]domain.Member, 0, len(p.members[guildID]))
	for _, m := range p.members[guildID] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *Platform) FetchMember(ctx context.Context, guildID, memberID string) (*domain.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpFetchMember, memberID); err != nil {
		return nil, err
	}
	m, ok := p.members[guildID][memberID]
	if !ok {
		return nil, fmt.Errorf("unknown member %s", memberID)
	}
	return &m, nil
}

func (p *Platform) GuildRoles(ctx context.Context, guildID string) ([]domain.Role, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpGuildRoles, guildID); err != nil {
		return nil, err
	}
	return append([]domain.Role(nil), p.roles[guildID]...), nil
}

func (p *Platform) sortedThreads() []*thread {
	out := make([]*thread, 0, len(p.threads))
	for _, t := range p.threads {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var (
	_ ports.ThreadProvider  = (*Platform)(nil)
	_ ports.MemberDirectory = (*Platform)(nil)
)
