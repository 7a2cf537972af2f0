package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/dggpoliticalaction/greeter/internal/domain"
)

// autoArchiveWeek is the thread auto-archive duration in minutes.
const autoArchiveWeek = 10080

func toChannel(c *discordgo.Channel) domain.Channel {
	return domain.Channel{ID: c.ID, GuildID: c.GuildID, Name: c.Name}
}

func toThread(c *discordgo.Channel) domain.Thread {
	t := domain.Thread{ID: c.ID, ParentID: c.ParentID, Name: c.Name}
	if created, err := discordgo.SnowflakeTimestamp(c.ID); err == nil {
		t.CreatedAt = created
	}
	if md := c.ThreadMetadata; md != nil && md.Archived {
		t.Archived = true
		if !md.ArchiveTimestamp.IsZero() {
			at := md.ArchiveTimestamp
			t.ArchivedAt = &at
		}
	}
	return t
}

func toThreads(channels []*discordgo.Channel, parentID string) []domain.Thread {
	out := make([]domain.Thread, 0, len(channels))
	for _, c := range channels {
		if c == nil || (parentID != "" && c.ParentID != parentID) {
			continue
		}
		out = append(out, toThread(c))
	}
	return out
}

func toMember(guildID string, m *discordgo.Member) domain.Member {
	out := domain.Member{GuildID: guildID, RoleIDs: append([]string(nil), m.Roles...)}
	if m.GuildID != "" {
		out.GuildID = m.GuildID
	}
	if m.User != nil {
		out.ID = m.User.ID
		out.Username = m.User.Username
		out.Bot = m.User.Bot
	}
	return out
}

func toRole(r *discordgo.Role) domain.Role {
	return domain.Role{ID: r.ID, Name: r.Name}
}

// RoleResolver maps a role ID to its role within a guild.
type RoleResolver func(guildID, roleID string) (domain.Role, bool)

func resolveRoles(guildID string, ids []string, resolve RoleResolver) []domain.Role {
	roles := make([]domain.Role, 0, len(ids))
	for _, id := range ids {
		if r, ok := resolve(guildID, id); ok {
			roles = append(roles, r)
		} else {
			roles = append(roles, domain.Role{ID: id})
		}
	}
	return roles
}

// roleChange builds the before/after role sets for a member update. ok is false
// when the previous state is unknown and no diff can be made.
func roleChange(update *discordgo.GuildMemberUpdate, resolve RoleResolver) (domain.RoleChange, bool) {
	if update == nil || update.Member == nil || update.User == nil || update.BeforeUpdate == nil {
		return domain.RoleChange{}, false
	}
	member := toMember(update.GuildID, update.Member)
	return domain.RoleChange{
		Member: member,
		Before: resolveRoles(member.GuildID, update.BeforeUpdate.Roles, resolve),
		After:  resolveRoles(member.GuildID, update.Member.Roles, resolve),
	}, true
}
