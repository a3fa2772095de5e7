package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"newsherald/app/database"
)

const failedJobsLimit = 50

func NewHandler(queueRepo database.QueueRepository, newsRepo database.NewsRepository,
	polls PollStatus, version string) *Handler {
	return &Handler{
		queueRepo: queueRepo,
		newsRepo:  newsRepo,
		polls:     polls,
		version:   version,
		startedAt: time.Now(),
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"version":   h.version,
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := gin.H{}

	queueStats, err := h.queueRepo.Stats()
	if err != nil {
		slog.Error("Database error", "operation", "queue_stats", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	stats["queue"] = queueStats

	if counts, err := h.newsRepo.CountByCategory(); err == nil {
		stats["news"] = counts
	} else {
		slog.Error("Database error", "operation", "news_counts", "error", err)
	}

	if h.polls != nil {
		lastRuns := make(map[string]string)
		for category, ts := range h.polls.LastRuns() {
			lastRuns[category] = ts.Format(time.RFC3339)
		}
		stats["last_polled"] = lastRuns
	}

	c.JSON(http.StatusOK, stats)
}

// APIListFailedJobs exposes recent terminal failures so an operator can see
// which destinations are rejecting deliveries and why.
func (h *Handler) APIListFailedJobs(c *gin.Context) {
	jobs, err := h.queueRepo.ListTerminalFailures(failedJobsLimit)
	if err != nil {
		slog.Error("Database error", "operation", "list_failed_jobs", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	out := make([]gin.H, 0, len(jobs))
	for _, job := range jobs {
		entry := gin.H{
			"id":          job.ID,
			"type":        job.Type,
			"status":      job.Status,
			"category":    job.Category,
			"guild_id":    job.GuildID,
			"channel_id":  job.ChannelID,
			"retry_count": job.RetryCount,
			"error":       job.ErrorMessage,
			"created_at":  job.CreatedAt.Format(time.RFC3339),
		}
		if job.ProcessedAt != nil {
			entry["processed_at"] = job.ProcessedAt.Format(time.RFC3339)
		}
		out = append(out, entry)
	}

	c.JSON(http.StatusOK, gin.H{"jobs": out, "count": len(out)})
}
