package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability"
	"github.com/mmcdole/gofeed"

	"newsherald/app/render"
)

// ErrUnavailable marks a source fetch that failed at the transport or HTTP
// level. Pollers skip the cycle on it instead of treating it as item data.
var ErrUnavailable = errors.New("news source unavailable")

// Client fetches news lists from the external source. One client serves all
// categories; the endpoint and format come from the category definition.
type Client struct {
	httpClient *http.Client
	feedParser *gofeed.Parser
	userAgent  string
}

func NewClient(httpClient *http.Client, userAgent string) *Client {
	return &Client{
		httpClient: httpClient,
		feedParser: gofeed.NewParser(),
		userAgent:  userAgent,
	}
}

// Fetch returns the latest items for one category endpoint, most-recent-first
// as delivered by the source. The limit caps how many items are decoded.
func (c *Client) Fetch(ctx context.Context, url string, format Format, limit int) ([]Item, error) {
	data, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var items []Item
	switch format {
	case FormatRSS:
		items, err = c.decodeRSS(data)
	default:
		items, err = c.decodeJSON(data)
	}
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}

func (c *Client) decodeJSON(data []byte) ([]Item, error) {
	var wire []wireItem
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode source response: %w", err)
	}

	items := make([]Item, 0, len(wire))
	for _, w := range wire {
		item := Item{
			Title:       w.Title,
			Link:        w.URL,
			Date:        fromEpochMillis(w.Time),
			BannerURL:   w.Image,
			Tag:         w.Tag,
			Description: w.Description,
			Extras: Extras{
				MaintenanceStart: optionalEpochMillis(w.Start),
				MaintenanceEnd:   optionalEpochMillis(w.End),
				LiveLetterAt:     optionalEpochMillis(w.LiveLetter),
				EventStart:       optionalEpochMillis(w.EventStart),
				EventEnd:         optionalEpochMillis(w.EventEnd),
			},
		}
		for _, b := range w.Blocks {
			switch b.Type {
			case "gallery":
				item.Body = append(item.Body, render.BodyBlock{Kind: render.BodyGallery, Images: b.Images})
			case "separator":
				item.Body = append(item.Body, render.BodyBlock{Kind: render.BodySeparator})
			default:
				item.Body = append(item.Body, render.BodyBlock{Kind: render.BodyText, Text: b.Text})
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Client) decodeRSS(data []byte) ([]Item, error) {
	feed, err := c.feedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, fi := range feed.Items {
		item := Item{
			Title:       fi.Title,
			Link:        fi.Link,
			Description: fi.Description,
		}
		if fi.PublishedParsed != nil {
			item.Date = fi.PublishedParsed.UTC()
		}
		if len(fi.Categories) > 0 {
			item.Tag = fi.Categories[0]
		}
		if fi.Image != nil {
			item.BannerURL = fi.Image.URL
		}
		items = append(items, item)
	}
	return items, nil
}

// ExtractDescription fetches the article page and pulls a readable plain-text
// description out of it. Best effort: callers keep an empty description on
// failure.
func (c *Client) ExtractDescription(ctx context.Context, link string) (string, error) {
	data, err := c.get(ctx, link)
	if err != nil {
		return "", err
	}

	article, err := readability.FromReader(strings.NewReader(string(data)), nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("no content extracted from %s", link)
	}
	return text, nil
}

func fromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func optionalEpochMillis(ms int64) *time.Time {
	if ms == 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
