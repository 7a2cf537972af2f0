package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/dggpoliticalaction/greeter/internal/domain"
)

// Intents are the gateway intents the handlers need.
const Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

const handlerTimeout = 30 * time.Second

// RoleChangeProcessor consumes member role changes and departures.
type RoleChangeProcessor interface {
	Process(ctx context.Context, change domain.RoleChange)
	ProcessLeave(ctx context.Context, guildID, memberID string) int
}

// Events routes gateway member events to a RoleChangeProcessor.
type Events struct {
	processor RoleChangeProcessor
	roles     RoleResolver
	log       zerolog.Logger
}

func NewEvents(processor RoleChangeProcessor, roles RoleResolver, log zerolog.Logger) *Events {
	return &Events{processor: processor, roles: roles, log: log}
}

// Register adds the member update and remove handlers to s. The returned
// function removes them.
func (e *Events) Register(s *discordgo.Session) func() {
	removeUpdate := s.AddHandler(func(_ *discordgo.Session, u *discordgo.GuildMemberUpdate) {
		e.OnMemberUpdate(u)
	})
	removeLeave := s.AddHandler(func(_ *discordgo.Session, m *discordgo.GuildMemberRemove) {
		e.OnMemberRemove(m)
	})
	return func() {
		removeUpdate()
		removeLeave()
	}
}

// OnMemberUpdate diffs the member's roles and hands the change to the processor.
func (e *Events) OnMemberUpdate(u *discordgo.GuildMemberUpdate) {
	change, ok := roleChange(u, e.roles)
	if !ok {
		e.log.Debug().Msg("member update without cached previous state; skipping")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	e.processor.Process(ctx, change)
}

// OnMemberRemove cancels everything pending for a member who left the guild.
func (e *Events) OnMemberRemove(m *discordgo.GuildMemberRemove) {
	if m == nil || m.Member == nil || m.User == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	if n := e.processor.ProcessLeave(ctx, m.GuildID, m.User.ID); n > 0 {
		e.log.Info().
			Str("guild_id", m.GuildID).
			Str("member_id", m.User.ID).
			Int("cancelled", n).
			Msg("member left; cancelled pending onboardings")
	}
}
