package source

import (
	"time"

	"newsherald/app/render"
)

// Format selects how a category endpoint is fetched and decoded.
type Format string

const (
	FormatJSON Format = "json"
	FormatRSS  Format = "rss"
)

// Extras carries category-specific derived fields. They are compared and
// updated independently of the description.
type Extras struct {
	MaintenanceStart *time.Time `json:"maintenance_start,omitempty"`
	MaintenanceEnd   *time.Time `json:"maintenance_end,omitempty"`
	LiveLetterAt     *time.Time `json:"live_letter_at,omitempty"`
	EventStart       *time.Time `json:"event_start,omitempty"`
	EventEnd         *time.Time `json:"event_end,omitempty"`
}

// IsZero reports whether no extra field is set.
func (e Extras) IsZero() bool {
	return e.MaintenanceStart == nil && e.MaintenanceEnd == nil &&
		e.LiveLetterAt == nil && e.EventStart == nil && e.EventEnd == nil
}

// Item is one news entry as returned by the external source, already
// converted to domain types.
type Item struct {
	Title       string
	Link        string
	Date        time.Time
	BannerURL   string
	Tag         string
	Description string
	Body        []render.BodyBlock
	Extras      Extras
}

// Payload builds the immutable render snapshot for this item.
func (it Item) Payload(category string) render.Payload {
	return render.Payload{
		Category:    category,
		Title:       it.Title,
		Link:        it.Link,
		Date:        it.Date,
		BannerURL:   it.BannerURL,
		Tag:         it.Tag,
		Description: it.Description,
		Body:        it.Body,
	}
}

// Wire structures for the JSON endpoint. Timestamps are epoch milliseconds.
type wireItem struct {
	Title       string      `json:"title"`
	URL         string      `json:"url"`
	Time        int64       `json:"time"`
	Image       string      `json:"image,omitempty"`
	Tag         string      `json:"tag,omitempty"`
	Description string      `json:"description,omitempty"`
	Blocks      []wireBlock `json:"blocks,omitempty"`
	Start       int64       `json:"start,omitempty"`
	End         int64       `json:"end,omitempty"`
	LiveLetter  int64       `json:"live_letter,omitempty"`
	EventStart  int64       `json:"event_start,omitempty"`
	EventEnd    int64       `json:"event_end,omitempty"`
}

type wireBlock struct {
	Type   string   `json:"type"`
	Text   string   `json:"text,omitempty"`
	Images []string `json:"images,omitempty"`
}
