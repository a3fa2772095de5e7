package database

import (
	"database/sql"
	"fmt"
	"time"
)

// SQLQueueRepository handles database operations for delivery jobs
type SQLQueueRepository struct {
	db *DB
}

func NewQueueRepository(db *DB) *SQLQueueRepository {
	return &SQLQueueRepository{db: db}
}

// EnqueueBatch inserts all jobs in one transaction and returns the count.
func (r *SQLQueueRepository) EnqueueBatch(jobs []QueueJob) (int, error) {
	if len(jobs) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO queue_jobs (job_type, category, news_item_id, guild_id, channel_id,
		                        message_id, status, retry_count, priority, payload_json,
		                        created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 'PENDING', 0, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare enqueue statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, job := range jobs {
		_, err := stmt.Exec(job.Type, job.Category, job.NewsItemID, job.GuildID,
			job.ChannelID, job.MessageID, job.Priority, string(job.Payload), now, now)
		if err != nil {
			return 0, fmt.Errorf("failed to enqueue job: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit enqueue batch: %w", err)
	}
	return len(jobs), nil
}

// Claim marks up to limit PENDING jobs PROCESSING and returns them, highest
// priority first, FIFO within a priority tier. The single UPDATE...RETURNING
// statement makes the claim atomic: concurrent claimers cannot receive the
// same row.
func (r *SQLQueueRepository) Claim(limit int) ([]QueueJob, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := r.db.Query(`
		UPDATE queue_jobs
		SET status = 'PROCESSING', updated_at = ?
		WHERE id IN (
			SELECT id FROM queue_jobs
			WHERE status = 'PENDING'
			ORDER BY priority DESC, created_at ASC, id ASC
			LIMIT ?
		)
		RETURNING id, job_type, category, news_item_id, guild_id, channel_id,
		          message_id, status, retry_count, priority, payload_json,
		          error_message, created_at, updated_at, processed_at
	`, time.Now().Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim jobs: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (r *SQLQueueRepository) Release(id int64) error {
	return r.setStatus(id, StatusPending, "")
}

func (r *SQLQueueRepository) MarkCompleted(id int64) error {
	now := time.Now().Unix()
	_, err := r.db.Exec(`
		UPDATE queue_jobs
		SET status = 'COMPLETED', updated_at = ?, processed_at = ?
		WHERE id = ?
	`, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	return nil
}

// MarkRetry returns a job to PENDING and increments its retry count.
func (r *SQLQueueRepository) MarkRetry(id int64, errorMessage string) error {
	_, err := r.db.Exec(`
		UPDATE queue_jobs
		SET status = 'PENDING', retry_count = retry_count + 1,
		    error_message = ?, updated_at = ?
		WHERE id = ?
	`, errorMessage, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to mark job for retry: %w", err)
	}
	return nil
}

func (r *SQLQueueRepository) MarkFailed(id int64, errorMessage string) error {
	now := time.Now().Unix()
	_, err := r.db.Exec(`
		UPDATE queue_jobs
		SET status = 'FAILED', error_message = ?, updated_at = ?, processed_at = ?
		WHERE id = ?
	`, errorMessage, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

func (r *SQLQueueRepository) MarkStopped(id int64, status JobStatus, errorMessage string) error {
	if !status.Terminal() {
		return fmt.Errorf("status %s is not terminal", status)
	}
	now := time.Now().Unix()
	_, err := r.db.Exec(`
		UPDATE queue_jobs
		SET status = ?, error_message = ?, updated_at = ?, processed_at = ?
		WHERE id = ?
	`, status, errorMessage, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark job stopped: %w", err)
	}
	return nil
}

// ResetStale returns PROCESSING jobs untouched for longer than olderThan to
// PENDING. Covers jobs abandoned by a crash mid-dispatch.
func (r *SQLQueueRepository) ResetStale(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).Unix()
	res, err := r.db.Exec(`
		UPDATE queue_jobs
		SET status = 'PENDING', updated_at = ?
		WHERE status = 'PROCESSING' AND updated_at < ?
	`, time.Now().Unix(), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

// PurgeTerminal deletes terminal jobs whose processed_at is older than the
// retention window.
func (r *SQLQueueRepository) PurgeTerminal(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).Unix()
	res, err := r.db.Exec(`
		DELETE FROM queue_jobs
		WHERE status IN ('COMPLETED', 'FAILED', 'STOPPED_MISSING_PERMISSIONS',
		                 'STOPPED_UNKNOWN_CHANNEL', 'STOPPED_UNKNOWN_GUILD',
		                 'STOPPED_MISSING_ACCESS')
		  AND processed_at IS NOT NULL AND processed_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge terminal jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

func (r *SQLQueueRepository) Stats() (*QueueStats, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM queue_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}
	defer rows.Close()

	stats := &QueueStats{}
	for rows.Next() {
		var status JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		switch status {
		case StatusPending:
			stats.Pending = count
		case StatusProcessing:
			stats.Processing = count
		case StatusCompleted:
			stats.Completed = count
		case StatusFailed:
			stats.Failed = count
		default:
			stats.Stopped += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stats rows: %w", err)
	}
	return stats, nil
}

// ListTerminalFailures returns the most recent FAILED and STOPPED_* jobs for
// operator inspection.
func (r *SQLQueueRepository) ListTerminalFailures(limit int) ([]QueueJob, error) {
	rows, err := r.db.Query(`
		SELECT id, job_type, category, news_item_id, guild_id, channel_id,
		       message_id, status, retry_count, priority, payload_json,
		       error_message, created_at, updated_at, processed_at
		FROM queue_jobs
		WHERE status IN ('FAILED', 'STOPPED_MISSING_PERMISSIONS',
		                 'STOPPED_UNKNOWN_CHANNEL', 'STOPPED_UNKNOWN_GUILD',
		                 'STOPPED_MISSING_ACCESS')
		ORDER BY processed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list terminal failures: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (r *SQLQueueRepository) setStatus(id int64, status JobStatus, errorMessage string) error {
	_, err := r.db.Exec(`
		UPDATE queue_jobs
		SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`, status, errorMessage, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set job status: %w", err)
	}
	return nil
}

func scanJobs(rows *sql.Rows) ([]QueueJob, error) {
	var jobs []QueueJob
	for rows.Next() {
		var job QueueJob
		var payload string
		var createdAt, updatedAt int64
		var processedAt sql.NullInt64

		err := rows.Scan(&job.ID, &job.Type, &job.Category, &job.NewsItemID,
			&job.GuildID, &job.ChannelID, &job.MessageID, &job.Status,
			&job.RetryCount, &job.Priority, &payload, &job.ErrorMessage,
			&createdAt, &updatedAt, &processedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}

		job.Payload = []byte(payload)
		job.CreatedAt = time.Unix(createdAt, 0).UTC()
		job.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		if processedAt.Valid {
			t := time.Unix(processedAt.Int64, 0).UTC()
			job.ProcessedAt = &t
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	return jobs, nil
}
