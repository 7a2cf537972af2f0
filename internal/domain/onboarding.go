package domain

import "time"

// PendingKey identifies one pending onboarding: a member granted a role in a guild.
type PendingKey struct {
	GuildID  string
	MemberID string
	RoleID   string
}

// String returns the key as guild-member-role.
func (k PendingKey) String() string {
	return k.GuildID + "-" + k.MemberID + "-" + k.RoleID
}

// PendingOnboarding is a scheduled, not yet executed welcome thread creation.
type PendingOnboarding struct {
	Key         PendingKey
	TeamName    string
	ScheduledAt time.Time
	// Token identifies this particular scheduling of Key. A fire carrying a
	// different token belongs to an earlier, cancelled scheduling.
	Token  string
	Handle string
}

// DeferredTask is what a deferrer hands back when a delay elapses.
type DeferredTask struct {
	Key      PendingKey `json:"key"`
	TeamName string     `json:"team_name"`
	Token    string     `json:"token"`
}

// WelcomeThreadConfig is the validated welcome thread configuration. A nil
// *WelcomeThreadConfig means the feature is not configured.
type WelcomeThreadConfig struct {
	ChannelName         string
	WelcomeTeamRoleName string
	ModRoleName         string
	DirectorRoleName    string
	MaxActiveThreads    int
	MaxTotalThreads     int
	InactivityDays      int
	WelcomeMessage      string
}
