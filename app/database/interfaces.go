package database

import (
	"time"

	"newsherald/app/render"
	"newsherald/app/source"
)

type NewsRepository interface {
	FindByKey(category, title, normalizedDate string) (*NewsItem, error)
	Insert(item *NewsItem) (int64, error)
	UpdateDescription(id int64, description string, body []render.BodyBlock) error
	UpdateExtras(id int64, extras source.Extras) error
	CountByCategory() (map[string]int, error)
}

type SubscriptionRepository interface {
	ListByCategory(category string) ([]Subscription, error)
	Upsert(guildID, category, channelID, blacklist string) error
	Delete(guildID, category string) error
	DeleteByGuild(guildID string) (int64, error)
}

type QueueRepository interface {
	EnqueueBatch(jobs []QueueJob) (int, error)

	// Claim atomically marks up to limit PENDING jobs PROCESSING, ordered by
	// priority descending then creation time ascending, and returns them.
	// Two concurrent claimers can never receive the same job.
	Claim(limit int) ([]QueueJob, error)

	// Release puts a claimed-but-undispatched job back to PENDING without
	// touching its retry count (rate-limit deferral).
	Release(id int64) error

	MarkCompleted(id int64) error
	MarkRetry(id int64, errorMessage string) error
	MarkFailed(id int64, errorMessage string) error
	MarkStopped(id int64, status JobStatus, errorMessage string) error

	ResetStale(olderThan time.Duration) (int64, error)
	PurgeTerminal(olderThan time.Duration) (int64, error)

	Stats() (*QueueStats, error)
	ListTerminalFailures(limit int) ([]QueueJob, error)
}

type PostedMessageRepository interface {
	Insert(m *PostedMessage) error
	ListRichFormat(category string, newsItemID int64) ([]PostedMessage, error)
	DeleteByGuild(guildID string) (int64, error)
	DeleteByMessage(channelID, messageID string) error
}
