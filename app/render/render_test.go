package render

import (
	"strings"
	"testing"
	"time"
)

var testAccent = 0xc53f3f

func basePayload() Payload {
	return Payload{
		Category:    "topic",
		Title:       "Patch 7.2 Notes",
		Link:        "https://example.com/news/1234",
		Date:        time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		Tag:         "Update",
		Description: "The patch notes have been published.",
	}
}

func TestRender_MissingAccentColor(t *testing.T) {
	if msg := Render(basePayload(), nil); msg != nil {
		t.Errorf("Expected nil message when accent color is unconfigured, got %+v", msg)
	}
}

func TestRender_FixedBlocks(t *testing.T) {
	p := basePayload()
	p.BannerURL = "https://example.com/banner.png"

	msg := Render(p, &testAccent)
	if msg == nil {
		t.Fatalf("Expected a rendered message")
	}
	if msg.AccentColor != testAccent {
		t.Errorf("Expected accent color %#x, got %#x", testAccent, msg.AccentColor)
	}

	kinds := make([]BlockKind, 0, len(msg.Blocks))
	for _, b := range msg.Blocks {
		kinds = append(kinds, b.Kind)
	}

	want := []BlockKind{BlockLabel, BlockTitle, BlockBanner, BlockText, BlockSeparator, BlockFooter}
	if len(kinds) != len(want) {
		t.Fatalf("Expected blocks %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("Block %d: expected %s, got %s", i, want[i], kinds[i])
		}
	}
}

func TestRender_RoundTrip(t *testing.T) {
	p := basePayload()
	msg := Render(p, &testAccent)
	if msg == nil {
		t.Fatalf("Expected a rendered message")
	}

	if msg.Title() != p.Title {
		t.Errorf("Title round-trip failed: got %q", msg.Title())
	}
	if msg.Link() != p.Link {
		t.Errorf("Link round-trip failed: got %q", msg.Link())
	}
	if !msg.FooterTime().Equal(p.Date) {
		t.Errorf("Footer timestamp round-trip failed: got %v", msg.FooterTime())
	}
}

func TestRender_TruncatesWithContinueLink(t *testing.T) {
	p := basePayload()
	p.Description = ""
	// One huge text block and nothing after it: the link variant applies.
	p.Body = []BodyBlock{{Kind: BodyText, Text: strings.Repeat("a", MaxChars*2)}}

	msg := Render(p, &testAccent)
	if msg == nil {
		t.Fatalf("Expected a rendered message")
	}

	var text string
	for _, b := range msg.Blocks {
		if b.Kind == BlockText {
			text = b.Text
		}
	}
	if text == "" {
		t.Fatalf("Expected a text block")
	}
	if !strings.Contains(text, continueLabel) {
		t.Errorf("Expected a continue-reading link when no later block can render")
	}
	if !strings.Contains(text, p.Link) {
		t.Errorf("Continue-reading link should point at the source")
	}
	if !strings.Contains(text, ellipsis) {
		t.Errorf("Expected an ellipsis on the truncated text")
	}
}

func TestRender_TruncatesWithoutLinkWhenLaterBlockFits(t *testing.T) {
	p := basePayload()
	p.Description = ""
	p.Body = []BodyBlock{
		{Kind: BodyText, Text: strings.Repeat("a", MaxChars*2)},
		{Kind: BodyGallery, Images: []string{"https://example.com/a.png"}},
	}

	msg := Render(p, &testAccent)
	if msg == nil {
		t.Fatalf("Expected a rendered message")
	}

	var sawGallery bool
	for _, b := range msg.Blocks {
		if b.Kind == BlockText && strings.Contains(b.Text, continueLabel) {
			t.Errorf("Link must not be appended while a later block can still render")
		}
		if b.Kind == BlockGallery {
			sawGallery = true
		}
	}
	if !sawGallery {
		t.Errorf("Gallery after a truncated text block should still render")
	}
}

func TestRender_TotalCharBudget(t *testing.T) {
	p := basePayload()
	p.Description = ""
	p.Body = []BodyBlock{
		{Kind: BodyText, Text: strings.Repeat("x", 4000)},
		{Kind: BodyText, Text: strings.Repeat("y", 4000)},
	}

	msg := Render(p, &testAccent)
	if msg == nil {
		t.Fatalf("Expected a rendered message")
	}

	total := 0
	for _, b := range msg.Blocks {
		total += len([]rune(b.Text))
	}
	if total > MaxChars {
		t.Errorf("Rendered characters %d exceed budget %d", total, MaxChars)
	}
}

func TestRender_GalleryCappedToBlockBudget(t *testing.T) {
	images := make([]string, MaxBlocks*2)
	for i := range images {
		images[i] = "https://example.com/img.png"
	}

	p := basePayload()
	p.Description = ""
	p.Body = []BodyBlock{{Kind: BodyGallery, Images: images}}

	msg := Render(p, &testAccent)
	if msg == nil {
		t.Fatalf("Expected a rendered message")
	}

	if len(msg.Blocks) > MaxBlocks {
		t.Errorf("Block count %d exceeds budget %d", len(msg.Blocks), MaxBlocks)
	}

	for _, b := range msg.Blocks {
		if b.Kind == BlockGallery && len(b.Images) >= len(images) {
			t.Errorf("Gallery should be capped below %d images, got %d", len(images), len(b.Images))
		}
	}
}

func TestRender_FooterAlwaysLast(t *testing.T) {
	p := basePayload()
	p.Description = ""
	p.Body = []BodyBlock{
		{Kind: BodyText, Text: strings.Repeat("z", MaxChars*3)},
		{Kind: BodySeparator},
	}

	msg := Render(p, &testAccent)
	if msg == nil {
		t.Fatalf("Expected a rendered message")
	}

	last := msg.Blocks[len(msg.Blocks)-1]
	if last.Kind != BlockFooter {
		t.Errorf("Last block should be the footer, got %s", last.Kind)
	}
	if last.Timestamp.IsZero() {
		t.Errorf("Footer should carry the payload timestamp")
	}
}
