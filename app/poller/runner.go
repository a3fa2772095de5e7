package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"newsherald/app/config"
	"newsherald/app/database"
)

const pollTimeout = 2 * time.Minute

// Runner schedules poll cycles and queue retention with cron. Overlapping
// runs of the same job are skipped, so a slow source cannot stack cycles.
type Runner struct {
	cron       *cron.Cron
	poller     *Poller
	categories []*config.Category

	mu       sync.Mutex
	lastRuns map[string]time.Time
}

func NewRunner(poller *Poller, categories []*config.Category,
	queue database.QueueRepository, retention time.Duration) (*Runner, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	r := &Runner{
		cron:       c,
		poller:     poller,
		categories: categories,
		lastRuns:   make(map[string]time.Time),
	}

	for _, category := range categories {
		if !category.Enabled {
			slog.Debug("Category disabled, not scheduled", "category", category.Name)
			continue
		}
		category := category
		if _, err := c.AddFunc(category.Schedule, func() { r.poll(category) }); err != nil {
			return nil, err
		}
	}

	if retention > 0 {
		if _, err := c.AddFunc("@hourly", func() {
			if n, err := queue.PurgeTerminal(retention); err != nil {
				slog.Error("Queue retention purge failed", "error", err)
			} else if n > 0 {
				slog.Info("Purged terminal jobs", "count", n)
			}
		}); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Start polls every enabled category once, then hands off to the schedule.
func (r *Runner) Start() {
	go func() {
		for _, category := range r.categories {
			if category.Enabled {
				r.poll(category)
			}
		}
	}()
	r.cron.Start()
}

// Stop halts the schedule and waits for running cycles to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}

// LastRuns returns when each category was last polled.
func (r *Runner) LastRuns() map[string]time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]time.Time, len(r.lastRuns))
	for name, ts := range r.lastRuns {
		out[name] = ts
	}
	return out
}

func (r *Runner) poll(category *config.Category) {
	ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
	defer cancel()

	if err := r.poller.PollCategory(ctx, category); err != nil {
		slog.Error("Poll cycle failed", "category", category.Name, "error", err)
	}

	r.mu.Lock()
	r.lastRuns[category.Name] = time.Now()
	r.mu.Unlock()
}
