// Package dispatch drains the job queue: it claims pending jobs, enforces
// per-destination rate limits, executes platform sends and edits with bounded
// concurrency, and classifies outcomes into retries and terminal states.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"newsherald/app/database"
	"newsherald/app/platform"
	"newsherald/app/render"
)

type Config struct {
	// Concurrency is the global ceiling on in-flight job executions.
	Concurrency int
	// MaxAttempts is the total number of tries a job gets before FAILED.
	MaxAttempts int
	// FastTick is used while pending work exists, SlowTick while idle.
	FastTick time.Duration
	SlowTick time.Duration
	// StaleAfter resets PROCESSING jobs abandoned by a crashed run.
	StaleAfter time.Duration
	// RatePerWindow sends are allowed per destination per RateWindow.
	RatePerWindow int
	RateWindow    time.Duration
	// GlobalRatePerSec smooths bursts across all destinations; the platform
	// has its own global throughput ceiling.
	GlobalRatePerSec int
}

// AccentResolver returns the configured accent color for a category, or nil
// when the category has none (such payloads are unrenderable).
type AccentResolver func(category string) *int

type Dispatcher struct {
	queue  database.QueueRepository
	posted database.PostedMessageRepository
	client platform.Client
	accent AccentResolver
	cfg    Config

	limiter  *WindowLimiter
	global   *rate.Limiter
	inflight atomic.Int64
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

func New(queue database.QueueRepository, posted database.PostedMessageRepository,
	client platform.Client, accent AccentResolver, cfg Config) *Dispatcher {
	globalRate := rate.Inf
	if cfg.GlobalRatePerSec > 0 {
		globalRate = rate.Limit(cfg.GlobalRatePerSec)
	}
	return &Dispatcher{
		queue:   queue,
		posted:  posted,
		client:  client,
		accent:  accent,
		cfg:     cfg,
		limiter: NewWindowLimiter(cfg.RatePerWindow, cfg.RateWindow),
		global:  rate.NewLimiter(globalRate, 1),
		stopCh:  make(chan struct{}),
	}
}

// Run drives the adaptive control loop until the context is cancelled or
// Stop is called. In-flight jobs are given a chance to finish; anything
// still claimed is picked up by stale recovery on the next start.
func (d *Dispatcher) Run(ctx context.Context) {
	if n, err := d.queue.ResetStale(d.cfg.StaleAfter); err != nil {
		slog.Error("Startup recovery failed", "error", err)
	} else if n > 0 {
		slog.Info("Recovered stale jobs from previous run", "count", n)
	}

	timer := time.NewTimer(d.cfg.FastTick)
	defer timer.Stop()

	lastRecovery := time.Now()
	for {
		select {
		case <-ctx.Done():
			d.wg.Wait()
			return
		case <-d.stopCh:
			d.wg.Wait()
			return
		case <-timer.C:
		}

		busy := d.tick(ctx)

		if time.Since(lastRecovery) >= d.cfg.StaleAfter {
			if n, err := d.queue.ResetStale(d.cfg.StaleAfter); err != nil {
				slog.Error("Stale job recovery failed", "error", err)
			} else if n > 0 {
				slog.Warn("Reset stale processing jobs", "count", n)
			}
			lastRecovery = time.Now()
		}

		if busy {
			timer.Reset(d.cfg.FastTick)
		} else {
			timer.Reset(d.cfg.SlowTick)
		}
	}
}

// Stop ends the control loop; it does not cancel in-flight executions.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

// tick claims up to the free concurrency slots and dispatches each claimed
// job, deferring those whose destination is at its rate-limit cap. Returns
// whether pending work remains (drives the adaptive tick).
func (d *Dispatcher) tick(ctx context.Context) bool {
	slots := d.cfg.Concurrency - int(d.inflight.Load())
	if slots <= 0 {
		return true
	}

	jobs, err := d.queue.Claim(slots)
	if err != nil {
		slog.Error("Failed to claim jobs", "error", err)
		return false
	}
	if len(jobs) == 0 {
		return false
	}

	for _, job := range jobs {
		if !d.limiter.Allow(job.GuildID, job.ChannelID) {
			// Destination at its window cap: back to PENDING untouched,
			// retried on a later tick. Not a failure.
			if err := d.queue.Release(job.ID); err != nil {
				slog.Error("Failed to release deferred job", "job", job.ID, "error", err)
			}
			slog.Debug("Job deferred by rate limit",
				"job", job.ID, "guild", job.GuildID, "channel", job.ChannelID)
			continue
		}

		d.inflight.Add(1)
		d.wg.Add(1)
		go func(job database.QueueJob) {
			defer d.wg.Done()
			defer d.inflight.Add(-1)

			// Staggers concurrently dispatched jobs below the platform's
			// global throughput ceiling.
			if err := d.global.Wait(ctx); err != nil {
				d.finish(job, err)
				return
			}
			d.finish(job, d.execute(ctx, job))
		}(job)
	}
	return true
}

// execute renders the job's payload snapshot and performs the platform call.
func (d *Dispatcher) execute(ctx context.Context, job database.QueueJob) error {
	var payload render.Payload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return &unrenderableError{reason: fmt.Sprintf("malformed payload snapshot: %v", err)}
	}

	msg := render.Render(payload, d.accent(job.Category))
	if msg == nil {
		return &unrenderableError{reason: "no accent color configured for category " + job.Category}
	}

	switch job.Type {
	case database.JobUpdate:
		return d.client.EditMessage(ctx, job.ChannelID, job.MessageID, msg)
	default: // SEND and announcement variants
		messageID, err := d.client.SendMessage(ctx, job.ChannelID, msg)
		if err != nil {
			return err
		}
		ledgerErr := d.posted.Insert(&database.PostedMessage{
			Category:   job.Category,
			NewsItemID: job.NewsItemID,
			GuildID:    job.GuildID,
			ChannelID:  job.ChannelID,
			MessageID:  messageID,
			RichFormat: true,
		})
		if ledgerErr != nil {
			// The send succeeded; a missing ledger row only forfeits future
			// in-place edits.
			slog.Error("Failed to record posted message", "job", job.ID, "error", ledgerErr)
		}
		return nil
	}
}

// finish classifies the execution outcome into a job state transition.
func (d *Dispatcher) finish(job database.QueueJob, err error) {
	if err == nil {
		if markErr := d.queue.MarkCompleted(job.ID); markErr != nil {
			slog.Error("Failed to mark job completed", "job", job.ID, "error", markErr)
		}
		slog.Info("Job completed",
			"job", job.ID, "type", job.Type, "category", job.Category,
			"guild", job.GuildID, "channel", job.ChannelID)
		return
	}

	var unrenderable *unrenderableError
	if errors.As(err, &unrenderable) {
		// The snapshot itself is bad; retrying renders the same snapshot.
		if markErr := d.queue.MarkFailed(job.ID, unrenderable.reason); markErr != nil {
			slog.Error("Failed to mark job failed", "job", job.ID, "error", markErr)
		}
		slog.Error("Job payload unrenderable", "job", job.ID, "reason", unrenderable.reason)
		return
	}

	if errors.Is(err, platform.ErrUnknownMessage) {
		// The target message was deleted on the platform; drop the ledger
		// row so no further edits target it.
		if delErr := d.posted.DeleteByMessage(job.ChannelID, job.MessageID); delErr != nil {
			slog.Error("Failed to drop deleted message from ledger", "job", job.ID, "error", delErr)
		}
		if markErr := d.queue.MarkFailed(job.ID, err.Error()); markErr != nil {
			slog.Error("Failed to mark job failed", "job", job.ID, "error", markErr)
		}
		slog.Warn("Update target deleted externally", "job", job.ID, "message", job.MessageID)
		return
	}

	if status, ok := stoppedStatus(err); ok {
		if markErr := d.queue.MarkStopped(job.ID, status, err.Error()); markErr != nil {
			slog.Error("Failed to mark job stopped", "job", job.ID, "error", markErr)
		}
		slog.Warn("Job stopped",
			"job", job.ID, "status", status, "guild", job.GuildID,
			"channel", job.ChannelID, "error", err)
		return
	}

	if job.RetryCount+1 >= d.cfg.MaxAttempts {
		if markErr := d.queue.MarkFailed(job.ID, err.Error()); markErr != nil {
			slog.Error("Failed to mark job failed", "job", job.ID, "error", markErr)
		}
		slog.Error("Job failed after max attempts",
			"job", job.ID, "attempts", job.RetryCount+1, "error", err)
		return
	}

	if markErr := d.queue.MarkRetry(job.ID, err.Error()); markErr != nil {
		slog.Error("Failed to mark job for retry", "job", job.ID, "error", markErr)
	}
	slog.Warn("Job scheduled for retry",
		"job", job.ID, "attempt", job.RetryCount+1, "error", err)
}

type unrenderableError struct {
	reason string
}

func (e *unrenderableError) Error() string {
	return "unrenderable payload: " + e.reason
}
