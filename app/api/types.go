package api

import (
	"time"

	"newsherald/app/database"
)

// PollStatus reports when each category was last polled.
type PollStatus interface {
	LastRuns() map[string]time.Time
}

type Handler struct {
	queueRepo database.QueueRepository
	newsRepo  database.NewsRepository
	polls     PollStatus
	version   string
	startedAt time.Time
}
