// Package poller drives the per-category poll cycle: fetch the source list,
// diff it against stored items, persist what changed, and hand new or changed
// content to the enqueue service.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"newsherald/app/config"
	"newsherald/app/database"
	"newsherald/app/render"
	"newsherald/app/source"
)

// Fetcher is the slice of the source client the poller needs.
type Fetcher interface {
	Fetch(ctx context.Context, url string, format source.Format, limit int) ([]source.Item, error)
	ExtractDescription(ctx context.Context, link string) (string, error)
}

// Enqueuer fans items out into delivery jobs.
type Enqueuer interface {
	EnqueueSend(category string, itemID int64, payload render.Payload) (int, error)
	EnqueueUpdate(category string, itemID int64, payload render.Payload) (int, error)
	EnqueueAnnounce(category string, itemID int64, payload render.Payload) (int, error)
}

type Poller struct {
	fetcher Fetcher
	news    database.NewsRepository
	queue   Enqueuer
	loc     *time.Location
	// floodCeiling caps how many new items one cycle may enqueue. Above it
	// everything is still persisted but nothing is sent, so a source that
	// republishes its archive cannot flood every subscribed channel.
	floodCeiling int
}

func New(fetcher Fetcher, news database.NewsRepository, queue Enqueuer, loc *time.Location, floodCeiling int) *Poller {
	return &Poller{
		fetcher:      fetcher,
		news:         news,
		queue:        queue,
		loc:          loc,
		floodCeiling: floodCeiling,
	}
}

type newItem struct {
	id      int64
	payload render.Payload
}

// PollCategory runs one poll cycle for a category. A source outage skips the
// cycle without error; per-item persistence errors are logged and do not
// abort the remaining items.
func (p *Poller) PollCategory(ctx context.Context, category *config.Category) error {
	items, err := p.fetcher.Fetch(ctx, category.Source.URL, category.Source.Format, category.Source.Limit)
	if err != nil {
		if errors.Is(err, source.ErrUnavailable) {
			slog.Warn("Source unavailable, skipping cycle", "category", category.Name, "error", err)
			return nil
		}
		return fmt.Errorf("failed to fetch category %s: %w", category.Name, err)
	}

	var fresh []newItem
	updatedCount := 0

	// The source lists most-recent-first; process oldest-first so items are
	// stored and sent in publication order.
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		title := source.NormalizeTitle(item.Title)
		if title == "" {
			continue
		}
		normalizedDate := source.NormalizeDate(item.Date, p.loc)

		existing, err := p.news.FindByKey(category.Name, title, normalizedDate)
		if err != nil {
			slog.Error("Failed to look up news item",
				"category", category.Name, "title", title, "error", err)
			continue
		}

		if existing == nil {
			id, ok := p.storeNew(ctx, category, &item, title, normalizedDate)
			if ok {
				fresh = append(fresh, newItem{id: id, payload: item.Payload(category.Name)})
			}
			continue
		}

		if p.applyChanges(category, existing, &item) {
			updatedCount++
		}
	}

	if len(fresh) > 0 {
		if p.floodCeiling > 0 && len(fresh) > p.floodCeiling {
			slog.Warn("New item count exceeds flood ceiling, persisted without sending",
				"category", category.Name, "new", len(fresh), "ceiling", p.floodCeiling)
		} else {
			for _, n := range fresh {
				if _, err := p.queue.EnqueueSend(category.Name, n.id, n.payload); err != nil {
					slog.Error("Failed to enqueue send jobs",
						"category", category.Name, "item", n.id, "error", err)
				}
			}
		}
	}

	slog.Info("Poll cycle completed",
		"category", category.Name,
		"fetched", len(items),
		"new", len(fresh),
		"updated", updatedCount)
	return nil
}

// storeNew persists a previously unseen item, extracting a description from
// the article page when the source listing carries none.
func (p *Poller) storeNew(ctx context.Context, category *config.Category, item *source.Item, title, normalizedDate string) (int64, bool) {
	if item.Description == "" && len(item.Body) == 0 && item.Link != "" {
		text, err := p.fetcher.ExtractDescription(ctx, item.Link)
		if err != nil {
			slog.Debug("Description extraction failed",
				"category", category.Name, "link", item.Link, "error", err)
		} else {
			item.Description = text
		}
	}

	id, err := p.news.Insert(&database.NewsItem{
		Category:       category.Name,
		Title:          title,
		NormalizedDate: normalizedDate,
		Link:           item.Link,
		Tag:            item.Tag,
		Description:    item.Description,
		Body:           item.Body,
		Extras:         item.Extras,
	})
	if err != nil {
		slog.Error("Failed to insert news item",
			"category", category.Name, "title", title, "error", err)
		return 0, false
	}
	return id, true
}

// applyChanges diffs an incoming item against its stored row. Content changes
// update posted messages in place; maintenance window changes additionally go
// out as a fresh announcement. Reports whether anything changed.
func (p *Poller) applyChanges(category *config.Category, existing *database.NewsItem, item *source.Item) bool {
	changed := false

	contentChanged := (item.Description != "" || len(item.Body) > 0) &&
		(item.Description != existing.Description || !blocksEqual(item.Body, existing.Body))
	if contentChanged {
		if err := p.news.UpdateDescription(existing.ID, item.Description, item.Body); err != nil {
			slog.Error("Failed to update description",
				"category", category.Name, "item", existing.ID, "error", err)
		} else {
			changed = true
			if _, err := p.queue.EnqueueUpdate(category.Name, existing.ID, item.Payload(category.Name)); err != nil {
				slog.Error("Failed to enqueue update jobs",
					"category", category.Name, "item", existing.ID, "error", err)
			}
		}
	}

	if !extrasEqual(item.Extras, existing.Extras) {
		if err := p.news.UpdateExtras(existing.ID, item.Extras); err != nil {
			slog.Error("Failed to update extras",
				"category", category.Name, "item", existing.ID, "error", err)
		} else {
			changed = true
			if maintenanceWindowChanged(item.Extras, existing.Extras) {
				slog.Info("Maintenance window changed",
					"category", category.Name, "item", existing.ID, "title", existing.Title)
				if _, err := p.queue.EnqueueAnnounce(category.Name, existing.ID, item.Payload(category.Name)); err != nil {
					slog.Error("Failed to enqueue announcement jobs",
						"category", category.Name, "item", existing.ID, "error", err)
				}
			}
		}
	}

	return changed
}

func blocksEqual(a, b []render.BodyBlock) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || a[i].Text != b[i].Text {
			return false
		}
		if len(a[i].Images) != len(b[i].Images) {
			return false
		}
		for j := range a[i].Images {
			if a[i].Images[j] != b[i].Images[j] {
				return false
			}
		}
	}
	return true
}

func extrasEqual(a, b source.Extras) bool {
	return timesEqual(a.MaintenanceStart, b.MaintenanceStart) &&
		timesEqual(a.MaintenanceEnd, b.MaintenanceEnd) &&
		timesEqual(a.LiveLetterAt, b.LiveLetterAt) &&
		timesEqual(a.EventStart, b.EventStart) &&
		timesEqual(a.EventEnd, b.EventEnd)
}

func maintenanceWindowChanged(incoming, stored source.Extras) bool {
	if incoming.MaintenanceStart == nil && incoming.MaintenanceEnd == nil {
		return false
	}
	return !timesEqual(incoming.MaintenanceStart, stored.MaintenanceStart) ||
		!timesEqual(incoming.MaintenanceEnd, stored.MaintenanceEnd)
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
