package ports

import (
	"context"
	"time"

	"github.com/dggpoliticalaction/greeter/internal/domain"
)

// ThreadProvider is the chat platform's channel and thread API.
type ThreadProvider interface {
	// GuildTextChannels lists the text channels of a guild.
	GuildTextChannels(ctx context.Context, guildID string) ([]domain.Channel, error)
	// ListActiveThreads lists non-archived threads under channelID.
	ListActiveThreads(ctx context.Context, channel domain.Channel) ([]domain.Thread, error)
	// ListArchivedThreadsPage lists archived private threads under channelID archived
	// strictly before before. A nil before starts from the most recent.
	ListArchivedThreadsPage(ctx context.Context, channel domain.Channel, before *time.Time) (domain.ThreadPage, error)
	CreatePrivateThread(ctx context.Context, channel domain.Channel, name, reason string) (*domain.Thread, error)
	ThreadMemberIDs(ctx context.Context, threadID string) ([]string, error)
	AddThreadMember(ctx context.Context, threadID, memberID string) error
	SendThreadMessage(ctx context.Context, threadID, content string) error
	DeleteThread(ctx context.Context, threadID, reason string) error
	// LastMessageTime returns the timestamp of the newest message in the thread,
	// or nil when the thread has no messages.
	LastMessageTime(ctx context.Context, threadID string) (*time.Time, error)
}

// MemberDirectory resolves guilds, members and roles.
type MemberDirectory interface {
	// GuildIDs lists the guilds the process is attached to.
	GuildIDs(ctx context.Context) ([]string, error)
	FetchGuildMembers(ctx context.Context, guildID string) ([]domain.Member, error)
	FetchMember(ctx context.Context, guildID, memberID string) (*domain.Member, error)
	GuildRoles(ctx context.Context, guildID string) ([]domain.Role, error)
}
