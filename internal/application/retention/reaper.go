package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dggpoliticalaction/greeter/internal/application/ports"
	"github.com/dggpoliticalaction/greeter/internal/domain"
	domerrors "github.com/dggpoliticalaction/greeter/internal/domain/errors"
)

// ChannelResolver finds the welcome channel of a guild.
type ChannelResolver interface {
	FindWelcomeChannel(ctx context.Context, guildID string) (*domain.Channel, error)
}

// Report summarizes one reaper run.
type Report struct {
	Checked int
	Closed  int
	Failed  int
}

// Reaper closes welcome threads that have been inactive for longer than the
// configured number of days.
type Reaper struct {
	provider ports.ThreadProvider
	guilds   ports.MemberDirectory
	channels ChannelResolver
	cfg      *domain.WelcomeThreadConfig
	emitter  ports.LifecycleEmitter
	log      zerolog.Logger
	now      func() time.Time
}

// NewReaper returns a Reaper. A nil cfg makes Run a no-op; emitter may be nil.
func NewReaper(provider ports.ThreadProvider, guilds ports.MemberDirectory, channels ChannelResolver, cfg *domain.WelcomeThreadConfig, emitter ports.LifecycleEmitter, log zerolog.Logger) *Reaper {
	return &Reaper{
		provider: provider,
		guilds:   guilds,
		channels: channels,
		cfg:      cfg,
		emitter:  emitter,
		log:      log.With().Str("component", "reaper").Logger(),
		now:      time.Now,
	}
}

// Run scans the active welcome threads of every attached guild and closes the
// ones whose last message (or creation, when empty) is older than the cutoff.
// Failures are isolated per thread and per guild; Run only returns an error when
// the guild list itself cannot be read.
func (r *Reaper) Run(ctx context.Context) (Report, error) {
	var report Report
	if r.cfg == nil {
		r.log.Debug().Msg("welcome threads not configured, nothing to reap")
		return report, nil
	}
	days := r.cfg.InactivityDays
	cutoff := r.now().Add(-time.Duration(days) * 24 * time.Hour)
	r.log.Info().Int("inactivity_days", days).Time("cutoff", cutoff).Msg("running auto-close for welcome threads")

	guildIDs, err := r.guilds.GuildIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: list guilds: %v", domerrors.ErrProviderFailed, err)
	}
	for _, guildID := range guildIDs {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		r.reapGuild(ctx, guildID, cutoff, &report)
	}

	r.log.Info().Int("checked", report.Checked).Int("closed", report.Closed).Int("failed", report.Failed).
		Msg("auto-close welcome threads completed")
	return report, nil
}

func (r *Reaper) reapGuild(ctx context.Context, guildID string, cutoff time.Time, report *Report) {
	log := r.log.With().Str("guild_id", guildID).Logger()
	channel, err := r.channels.FindWelcomeChannel(ctx, guildID)
	if err != nil {
		if !errors.Is(err, domerrors.ErrChannelNotFound) {
			log.Error().Err(err).Msg("resolve welcome channel failed")
		}
		return
	}
	active, err := r.provider.ListActiveThreads(ctx, *channel)
	if err != nil {
		log.Error().Err(err).Msg("list active welcome threads failed")
		return
	}
	for _, t := range active {
		report.Checked++
		closed, err := r.reapThread(ctx, guildID, t, cutoff)
		if err != nil {
			report.Failed++
			log.Error().Err(err).Str("thread_id", t.ID).Str("thread", t.Name).Msg("process welcome thread failed")
			continue
		}
		if closed {
			report.Closed++
		}
	}
}

func (r *Reaper) reapThread(ctx context.Context, guildID string, t domain.Thread, cutoff time.Time) (bool, error) {
	last, err := r.provider.LastMessageTime(ctx, t.ID)
	if err != nil {
		return false, fmt.Errorf("last message: %w", err)
	}
	activity := t.CreatedAt
	if last != nil {
		activity = *last
	}
	if activity.IsZero() || !activity.Before(cutoff) {
		return false, nil
	}

	days := r.cfg.InactivityDays
	r.log.Info().Str("guild_id", guildID).Str("thread_id", t.ID).Str("thread", t.Name).Time("last_activity", activity).
		Msg("closing inactive welcome thread")
	notice := fmt.Sprintf("This welcome thread has been inactive for %d days and will now be closed. "+
		"If you still need assistance, you can select your interest role again to create a new welcome thread.", days)
	if err := r.provider.SendThreadMessage(ctx, t.ID, notice); err != nil {
		return false, fmt.Errorf("send closing notice: %w", err)
	}
	reason := fmt.Sprintf("Auto-closed after %d days of inactivity", days)
	if err := r.provider.DeleteThread(ctx, t.ID, reason); err != nil {
		return false, fmt.Errorf("delete thread: %w", err)
	}
	if r.emitter != nil {
		ev := domain.LifecycleEvent{Type: domain.EventClosed, GuildID: guildID, ThreadID: t.ID, ThreadName: t.Name, Reason: reason, At: r.now()}
		if err := r.emitter.Emit(ctx, ev); err != nil {
			r.log.Debug().Err(err).Msg("emit lifecycle event failed")
		}
	}
	return true, nil
}
