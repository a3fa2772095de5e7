package database

import (
	"time"

	"newsherald/app/render"
	"newsherald/app/source"
)

// NewsItem is one stored news entry. Identity within a category is
// (title, normalized_date); the source has no stable numeric id.
type NewsItem struct {
	ID             int64
	Category       string
	Title          string
	NormalizedDate string
	Link           string
	Tag            string
	Description    string
	Body           []render.BodyBlock
	Extras         source.Extras
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Subscription maps a (guild, category) pair to its destination channel and
// optional blacklist expression. Written by the configuration surface,
// consumed read-only by the enqueue service.
type Subscription struct {
	ID        int64
	GuildID   string
	Category  string
	ChannelID string
	Blacklist string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type JobType string

const (
	JobSend                JobType = "SEND"
	JobUpdate              JobType = "UPDATE"
	JobAnnounceMaintenance JobType = "ANNOUNCE_MAINTENANCE"
)

type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"

	// Terminal states reached without retry: the platform reported a
	// condition a retry cannot fix.
	StatusStoppedMissingPermissions JobStatus = "STOPPED_MISSING_PERMISSIONS"
	StatusStoppedUnknownChannel     JobStatus = "STOPPED_UNKNOWN_CHANNEL"
	StatusStoppedUnknownGuild       JobStatus = "STOPPED_UNKNOWN_GUILD"
	StatusStoppedMissingAccess      JobStatus = "STOPPED_MISSING_ACCESS"
)

// Terminal reports whether a status will never transition again.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed,
		StatusStoppedMissingPermissions, StatusStoppedUnknownChannel,
		StatusStoppedUnknownGuild, StatusStoppedMissingAccess:
		return true
	}
	return false
}

// QueueJob is one durable delivery job. Payload is an immutable JSON snapshot
// of the news content taken at enqueue time; the dispatcher renders from it
// and never re-reads the news row.
type QueueJob struct {
	ID           int64
	Type         JobType
	Category     string
	NewsItemID   int64
	GuildID      string
	ChannelID    string
	MessageID    string
	Status       JobStatus
	RetryCount   int
	Priority     int
	Payload      []byte
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ProcessedAt  *time.Time
}

// PostedMessage records one successful rich-format send so later content
// changes can edit the message in place.
type PostedMessage struct {
	ID         int64
	Category   string
	NewsItemID int64
	GuildID    string
	ChannelID  string
	MessageID  string
	RichFormat bool
	CreatedAt  time.Time
}

// QueueStats summarizes job counts for the operational surface.
type QueueStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Stopped    int `json:"stopped"`
}
