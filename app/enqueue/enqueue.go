// Package enqueue fans one new or changed news item out into delivery jobs,
// one per eligible destination.
package enqueue

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"newsherald/app/database"
	"newsherald/app/filter"
	"newsherald/app/render"
)

// Job priorities; the dispatcher drains higher tiers first.
const (
	PrioritySend     = 0
	PriorityUpdate   = 3
	PriorityAnnounce = 10
)

type Service struct {
	subs   database.SubscriptionRepository
	posted database.PostedMessageRepository
	queue  database.QueueRepository
}

func NewService(subs database.SubscriptionRepository, posted database.PostedMessageRepository, queue database.QueueRepository) *Service {
	return &Service{subs: subs, posted: posted, queue: queue}
}

// EnqueueSend creates one SEND job per subscribed destination whose blacklist
// does not match the payload, batched in a single write. Returns the number
// of jobs enqueued.
func (s *Service) EnqueueSend(category string, itemID int64, payload render.Payload) (int, error) {
	return s.fanOut(database.JobSend, PrioritySend, category, itemID, payload)
}

// EnqueueAnnounce is EnqueueSend at announcement priority, used for
// maintenance-window notices that should jump the queue.
func (s *Service) EnqueueAnnounce(category string, itemID int64, payload render.Payload) (int, error) {
	return s.fanOut(database.JobAnnounceMaintenance, PriorityAnnounce, category, itemID, payload)
}

// EnqueueUpdate creates one UPDATE job per previously posted rich-format
// message for the item. Plain-format sends are immutable and skipped.
func (s *Service) EnqueueUpdate(category string, itemID int64, payload render.Payload) (int, error) {
	posted, err := s.posted.ListRichFormat(category, itemID)
	if err != nil {
		return 0, fmt.Errorf("failed to list posted messages: %w", err)
	}
	if len(posted) == 0 {
		return 0, nil
	}

	snapshot, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode payload snapshot: %w", err)
	}

	jobs := make([]database.QueueJob, 0, len(posted))
	for _, m := range posted {
		jobs = append(jobs, database.QueueJob{
			Type:       database.JobUpdate,
			Category:   category,
			NewsItemID: itemID,
			GuildID:    m.GuildID,
			ChannelID:  m.ChannelID,
			MessageID:  m.MessageID,
			Priority:   PriorityUpdate,
			Payload:    snapshot,
		})
	}

	return s.queue.EnqueueBatch(jobs)
}

func (s *Service) fanOut(jobType database.JobType, priority int, category string, itemID int64, payload render.Payload) (int, error) {
	subs, err := s.subs.ListByCategory(category)
	if err != nil {
		return 0, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return 0, nil
	}

	snapshot, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode payload snapshot: %w", err)
	}

	content := payload.Title + "\n" + payload.Description

	jobs := make([]database.QueueJob, 0, len(subs))
	for _, sub := range subs {
		if sub.Blacklist != "" {
			patterns, warnings := filter.Parse(sub.Blacklist)
			for _, w := range warnings {
				slog.Warn("Blacklist pattern ignored",
					"guild", sub.GuildID,
					"category", category,
					"warning", w)
			}
			if filter.Blacklisted(content, patterns) {
				slog.Debug("Destination skipped by blacklist",
					"guild", sub.GuildID,
					"category", category,
					"title", payload.Title)
				continue
			}
		}

		jobs = append(jobs, database.QueueJob{
			Type:       jobType,
			Category:   category,
			NewsItemID: itemID,
			GuildID:    sub.GuildID,
			ChannelID:  sub.ChannelID,
			Priority:   priority,
			Payload:    snapshot,
		})
	}

	return s.queue.EnqueueBatch(jobs)
}
