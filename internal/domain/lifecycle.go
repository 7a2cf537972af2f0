package domain

import "time"

// LifecycleEventType names an onboarding or thread state transition.
type LifecycleEventType string

const (
	EventQueued            LifecycleEventType = "queued"
	EventCancelled         LifecycleEventType = "cancelled"
	EventSkippedRoleLost   LifecycleEventType = "skipped_role_lost"
	EventCreated           LifecycleEventType = "created"
	EventRejectedCapacity  LifecycleEventType = "rejected_capacity"
	EventRejectedDuplicate LifecycleEventType = "rejected_duplicate"
	EventEvicted           LifecycleEventType = "evicted"
	EventClosed            LifecycleEventType = "closed"
)

// LifecycleEvent is a single transition for logging, metrics or webhooks.
type LifecycleEvent struct {
	Type       LifecycleEventType `json:"type"`
	GuildID    string             `json:"guild_id"`
	MemberID   string             `json:"member_id,omitempty"`
	RoleID     string             `json:"role_id,omitempty"`
	TeamName   string             `json:"team_name,omitempty"`
	ThreadID   string             `json:"thread_id,omitempty"`
	ThreadName string             `json:"thread_name,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	At         time.Time          `json:"at"`
}
