package domain

import "time"

// ChatLogEntry is the denormalized record of one completed turn.
type ChatLogEntry struct {
	SessionID   string
	StudyNumber string
	ContextID   string
	Query       string
	Response    string
	Sources     []string
	CreatedAt   time.Time
}
