package render

import (
	"fmt"
	"unicode/utf8"
)

// Budget constants for a single rendered message. MaxChars covers every
// counted text fragment (label, title, body text); MaxBlocks covers the
// total number of structural blocks including gallery images.
const (
	MaxChars  = 5800
	MaxBlocks = 25
)

const (
	ellipsis      = "…"
	continueLabel = "Continue reading"
)

// Render fits a payload into the character/block budget and returns the
// ordered block list. It returns nil when accent is nil (the category has no
// configured accent color); callers must skip sending instead of emitting a
// malformed message.
func Render(p Payload, accent *int) *Message {
	if accent == nil {
		return nil
	}

	msg := &Message{AccentColor: *accent}

	// Fixed-cost blocks first. The trailing separator + footer are always
	// appended, so their block slots are reserved from the budget up front.
	remainingChars := MaxChars
	remainingBlocks := MaxBlocks - 2

	label := p.Tag
	if label == "" {
		label = p.Category
	}
	if label != "" {
		msg.Blocks = append(msg.Blocks, Block{Kind: BlockLabel, Text: label})
		remainingChars -= utf8.RuneCountInString(label)
		remainingBlocks--
	}

	msg.Blocks = append(msg.Blocks, Block{Kind: BlockTitle, Text: p.Title, URL: p.Link})
	remainingChars -= utf8.RuneCountInString(p.Title)
	remainingBlocks--

	if p.BannerURL != "" {
		msg.Blocks = append(msg.Blocks, Block{Kind: BlockBanner, URL: p.BannerURL})
		remainingBlocks--
	}

	body := p.Body
	if len(body) == 0 && p.Description != "" {
		body = []BodyBlock{{Kind: BodyText, Text: p.Description}}
	}

	for i, b := range body {
		if remainingBlocks <= 0 {
			break
		}

		switch b.Kind {
		case BodyText:
			cost := utf8.RuneCountInString(b.Text)
			if cost <= remainingChars {
				msg.Blocks = append(msg.Blocks, Block{Kind: BlockText, Text: b.Text})
				remainingChars -= cost
				remainingBlocks--
				continue
			}

			// Overflow. With the character budget exhausted only char-free
			// blocks (galleries, separators) can still render; the source
			// link is appended only when none of the later blocks could.
			if laterBlockFits(body[i+1:], remainingBlocks-1) {
				msg.Blocks = append(msg.Blocks, Block{Kind: BlockText, Text: truncate(b.Text, remainingChars-utf8.RuneCountInString(ellipsis)) + ellipsis})
			} else {
				link := fmt.Sprintf("\n\n[%s](%s)", continueLabel, p.Link)
				keep := remainingChars - utf8.RuneCountInString(ellipsis) - utf8.RuneCountInString(link)
				msg.Blocks = append(msg.Blocks, Block{Kind: BlockText, Text: truncate(b.Text, keep) + ellipsis + link})
			}
			remainingChars = 0
			remainingBlocks--

		case BodyGallery:
			if len(b.Images) == 0 {
				continue
			}
			// Each gallery image occupies one block slot.
			limit := remainingBlocks
			if limit > len(b.Images) {
				limit = len(b.Images)
			}
			msg.Blocks = append(msg.Blocks, Block{Kind: BlockGallery, Images: b.Images[:limit]})
			remainingBlocks -= limit

		case BodySeparator:
			msg.Blocks = append(msg.Blocks, Block{Kind: BlockSeparator})
			remainingBlocks--
		}
	}

	msg.Blocks = append(msg.Blocks,
		Block{Kind: BlockSeparator},
		Block{Kind: BlockFooter, Timestamp: p.Date},
	)

	return msg
}

// laterBlockFits simulates the remaining body blocks against an exhausted
// character budget and reports whether any could still render.
func laterBlockFits(rest []BodyBlock, remainingBlocks int) bool {
	if remainingBlocks <= 0 {
		return false
	}
	for _, b := range rest {
		switch b.Kind {
		case BodyGallery:
			if len(b.Images) > 0 {
				return true
			}
		case BodySeparator:
			return true
		case BodyText:
			// Text needs characters; none remain after a truncation.
		}
	}
	return false
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
