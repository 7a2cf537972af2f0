package onboarding

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/dggpoliticalaction/greeter/internal/application/ports"
	"github.com/dggpoliticalaction/greeter/internal/domain"
)

// Onboarder is the part of the Scheduler the Detector drives.
type Onboarder interface {
	Queue(ctx context.Context, member domain.Member, team, roleID string) error
	Cancel(ctx context.Context, guildID, memberID, roleID string) bool
	CancelAllForMember(ctx context.Context, guildID, memberID string) int
}

type team struct {
	name             string
	interestRoleName string
}

// Detector classifies member role changes against the team interest roles.
type Detector struct {
	onboarder Onboarder
	limiter   ports.EventLimiter
	teams     []team
	log       zerolog.Logger
}

// NewDetector returns a Detector. teams maps team name to interest role name.
// A nil limiter disables rate limiting.
func NewDetector(onboarder Onboarder, limiter ports.EventLimiter, teams map[string]string, log zerolog.Logger) *Detector {
	ts := make([]team, 0, len(teams))
	for name, role := range teams {
		if role == "" {
			continue
		}
		ts = append(ts, team{name: name, interestRoleName: role})
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].name < ts[j].name })
	return &Detector{
		onboarder: onboarder,
		limiter:   limiter,
		teams:     ts,
		log:       log.With().Str("component", "detector").Logger(),
	}
}

// Process handles one member role change. Bots and rate limited members are ignored.
func (d *Detector) Process(ctx context.Context, change domain.RoleChange) {
	member := change.Member
	if member.Bot {
		return
	}
	if d.limiter != nil && !d.limiter.Allow(ctx, member.ID) {
		d.log.Debug().Str("member_id", member.ID).Msg("role change rate limited")
		return
	}
	if len(d.teams) == 0 {
		return
	}
	log := d.log.With().Str("guild_id", member.GuildID).Str("member_id", member.ID).Logger()

	for _, role := range change.Added() {
		name, ok := d.teamFor(role.Name)
		if !ok {
			continue
		}
		log.Info().Str("role", role.Name).Str("team", name).Msg("detected team interest role addition")
		if err := d.onboarder.Queue(ctx, member, name, role.ID); err != nil {
			log.Error().Err(err).Str("role_id", role.ID).Msg("queue welcome thread creation failed")
		}
	}

	for _, role := range change.Removed() {
		name, ok := d.teamFor(role.Name)
		if !ok {
			continue
		}
		log.Info().Str("role", role.Name).Str("team", name).Msg("detected team interest role removal")
		d.onboarder.Cancel(ctx, member.GuildID, member.ID, role.ID)
	}
}

// ProcessLeave cancels everything pending for a member who left the guild.
func (d *Detector) ProcessLeave(ctx context.Context, guildID, memberID string) int {
	return d.onboarder.CancelAllForMember(ctx, guildID, memberID)
}

func (d *Detector) teamFor(roleName string) (string, bool) {
	for _, t := range d.teams {
		if t.interestRoleName == roleName {
			return t.name, true
		}
	}
	return "", false
}
