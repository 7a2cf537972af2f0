package domain

import "time"

// Channel is a guild text channel.
type Channel struct {
	ID      string
	GuildID string
	Name    string
}

// Thread is a thread under a channel. It is owned by the chat provider; the core
// only reads it and issues commands against it.
type Thread struct {
	ID         string
	ParentID   string
	Name       string
	CreatedAt  time.Time
	Archived   bool
	ArchivedAt *time.Time
}

// ThreadPage is one page of archived threads.
type ThreadPage struct {
	Threads []Thread
	HasMore bool
}
