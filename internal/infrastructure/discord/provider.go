// Package discord adapts a discordgo session to the thread and member ports
// and feeds gateway member events into the role change detector.
package discord

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/dggpoliticalaction/greeter/internal/application/ports"
	"github.com/dggpoliticalaction/greeter/internal/domain"
)

const (
	archivedPageSize     = 100
	threadMemberPageSize = 100
	guildMemberPageSize  = 1000
)

// ErrSessionClosed is returned by the health check when the gateway is not connected.
var ErrSessionClosed = errors.New("discord gateway not connected")

// Provider implements ports.ThreadProvider and ports.MemberDirectory over REST,
// using the session state cache where it holds the answer.
type Provider struct {
	s *discordgo.Session
}

func NewProvider(s *discordgo.Session) *Provider {
	return &Provider{s: s}
}

// Ping reports whether the gateway connection is up.
func (p *Provider) Ping(ctx context.Context) error {
	if p.s.DataReady {
		return nil
	}
	return ErrSessionClosed
}

func (p *Provider) GuildTextChannels(ctx context.Context, guildID string) ([]domain.Channel, error) {
	channels, err := p.s.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Channel, 0, len(channels))
	for _, c := range channels {
		if c.Type == discordgo.ChannelTypeGuildText {
			out = append(out, toChannel(c))
		}
	}
	return out, nil
}

func (p *Provider) ListActiveThreads(ctx context.Context, channel domain.Channel) ([]domain.Thread, error) {
	list, err := p.s.GuildThreadsActive(channel.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return toThreads(list.Threads, channel.ID), nil
}

func (p *Provider) ListArchivedThreadsPage(ctx context.Context, channel domain.Channel, before *time.Time) (domain.ThreadPage, error) {
	list, err := p.s.ThreadsPrivateArchived(channel.ID, before, archivedPageSize, discordgo.WithContext(ctx))
	if err != nil {
		return domain.ThreadPage{}, err
	}
	return domain.ThreadPage{Threads: toThreads(list.Threads, channel.ID), HasMore: list.HasMore}, nil
}

func (p *Provider) CreatePrivateThread(ctx context.Context, channel domain.Channel, name, reason string) (*domain.Thread, error) {
	c, err := p.s.ThreadStartComplex(channel.ID, &discordgo.ThreadStart{
		Name:                name,
		AutoArchiveDuration: autoArchiveWeek,
		Type:                discordgo.ChannelTypeGuildPrivateThread,
		Invitable:           false,
	}, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	if err != nil {
		return nil, err
	}
	t := toThread(c)
	return &t, nil
}

func (p *Provider) ThreadMemberIDs(ctx context.Context, threadID string) ([]string, error) {
	var (
		ids   []string
		after string
	)
	for {
		members, err := p.s.ThreadMembers(threadID, threadMemberPageSize, false, after, discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			ids = append(ids, m.UserID)
		}
		if len(members) < threadMemberPageSize {
			return ids, nil
		}
		after = members[len(members)-1].UserID
	}
}

func (p *Provider) AddThreadMember(ctx context.Context, threadID, memberID string) error {
	return p.s.ThreadMemberAdd(threadID, memberID, discordgo.WithContext(ctx))
}

func (p *Provider) SendThreadMessage(ctx context.Context, threadID, content string) error {
	_, err := p.s.ChannelMessageSend(threadID, content, discordgo.WithContext(ctx))
	return err
}

func (p *Provider) DeleteThread(ctx context.Context, threadID, reason string) error {
	_, err := p.s.ChannelDelete(threadID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return err
}

func (p *Provider) LastMessageTime(ctx context.Context, threadID string) (*time.Time, error) {
	msgs, err := p.s.ChannelMessages(threadID, 1, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	at := msgs[0].Timestamp
	return &at, nil
}

func (p *Provider) GuildIDs(ctx context.Context) ([]string, error) {
	p.s.State.RLock()
	ids := make([]string, 0, len(p.s.State.Guilds))
	for _, g := range p.s.State.Guilds {
		ids = append(ids, g.ID)
	}
	p.s.State.RUnlock()
	sort.Strings(ids)
	return ids, nil
}

func (p *Provider) FetchGuildMembers(ctx context.Context, guildID string) ([]domain.Member, error) {
	var (
		out   []domain.Member
		after string
	)
	for {
		members, err := p.s.GuildMembers(guildID, after, guildMemberPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			out = append(out, toMember(guildID, m))
		}
		if len(members) < guildMemberPageSize || members[len(members)-1].User == nil {
			return out, nil
		}
		after = members[len(members)-1].User.ID
	}
}

func (p *Provider) FetchMember(ctx context.Context, guildID, memberID string) (*domain.Member, error) {
	m, err := p.s.GuildMember(guildID, memberID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	member := toMember(guildID, m)
	return &member, nil
}

func (p *Provider) GuildRoles(ctx context.Context, guildID string) ([]domain.Role, error) {
	roles, err := p.s.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, toRole(r))
	}
	return out, nil
}

// StateRole resolves a role from the session cache.
func (p *Provider) StateRole(guildID, roleID string) (domain.Role, bool) {
	r, err := p.s.State.Role(guildID, roleID)
	if err != nil || r == nil {
		return domain.Role{}, false
	}
	return toRole(r), true
}

var (
	_ ports.ThreadProvider  = (*Provider)(nil)
	_ ports.MemberDirectory = (*Provider)(nil)
)
