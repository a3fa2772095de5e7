package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetch_JSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"title": "Newest", "url": "https://example.com/2", "time": 1767222000000,
			 "tag": "Update", "description": "second item",
			 "blocks": [{"type": "text", "text": "body"}, {"type": "gallery", "images": ["https://example.com/a.png"]}]},
			{"title": "Older", "url": "https://example.com/1", "time": 1767135600000,
			 "start": 1767308400000, "end": 1767315600000}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), "newsherald-test")
	items, err := client.Fetch(context.Background(), server.URL, FormatJSON, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}

	// Source order (most-recent-first) must be preserved.
	if items[0].Title != "Newest" || items[1].Title != "Older" {
		t.Errorf("Source ordering not preserved: %q, %q", items[0].Title, items[1].Title)
	}

	first := items[0]
	if first.Link != "https://example.com/2" {
		t.Errorf("Unexpected link: %q", first.Link)
	}
	if first.Tag != "Update" {
		t.Errorf("Unexpected tag: %q", first.Tag)
	}
	want := time.UnixMilli(1767222000000).UTC()
	if !first.Date.Equal(want) {
		t.Errorf("Expected date %v, got %v", want, first.Date)
	}
	if len(first.Body) != 2 {
		t.Fatalf("Expected 2 body blocks, got %d", len(first.Body))
	}

	second := items[1]
	if second.Extras.MaintenanceStart == nil || second.Extras.MaintenanceEnd == nil {
		t.Fatalf("Expected maintenance window extras")
	}
	if !second.Extras.MaintenanceStart.Equal(time.UnixMilli(1767308400000).UTC()) {
		t.Errorf("Unexpected maintenance start: %v", second.Extras.MaintenanceStart)
	}
}

func TestFetch_Limit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"title": "a", "time": 1}, {"title": "b", "time": 2}, {"title": "c", "time": 3}]`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), "newsherald-test")
	items, err := client.Fetch(context.Background(), server.URL, FormatJSON, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("Expected limit to cap items at 2, got %d", len(items))
	}
}

func TestFetch_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.Client(), "newsherald-test")
	_, err := client.Fetch(context.Background(), server.URL, FormatJSON, 0)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}

func TestFetch_RSS(t *testing.T) {
	rss := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Server Status</title>
    <item>
      <title>All Worlds Online</title>
      <link>https://example.com/status/9</link>
      <description>Operations have been restored.</description>
      <category>Status</category>
      <pubDate>Tue, 10 Mar 2026 12:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rss))
	}))
	defer server.Close()

	client := NewClient(server.Client(), "newsherald-test")
	items, err := client.Fetch(context.Background(), server.URL, FormatRSS, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}

	item := items[0]
	if item.Title != "All Worlds Online" {
		t.Errorf("Unexpected title: %q", item.Title)
	}
	if item.Link != "https://example.com/status/9" {
		t.Errorf("Unexpected link: %q", item.Link)
	}
	if item.Tag != "Status" {
		t.Errorf("Unexpected tag: %q", item.Tag)
	}
	if item.Date.IsZero() {
		t.Errorf("Expected a parsed publish date")
	}
}
