package render

import "time"

// BodyBlockKind enumerates the structured-description variants carried by a
// news payload. The set is closed; Render switches over it exhaustively.
type BodyBlockKind string

const (
	BodyText      BodyBlockKind = "text"
	BodyGallery   BodyBlockKind = "gallery"
	BodySeparator BodyBlockKind = "separator"
)

// BodyBlock is one element of a structured description.
type BodyBlock struct {
	Kind   BodyBlockKind `json:"kind"`
	Text   string        `json:"text,omitempty"`
	Images []string      `json:"images,omitempty"`
}

// Payload is the immutable snapshot of a news item carried inside a queue
// job. Jobs render from this copy only; the news store is never re-read at
// dispatch time, so later edits to the source row cannot race a send.
type Payload struct {
	Category    string      `json:"category"`
	Title       string      `json:"title"`
	Link        string      `json:"link"`
	Date        time.Time   `json:"date"`
	BannerURL   string      `json:"banner_url,omitempty"`
	Tag         string      `json:"tag,omitempty"`
	Description string      `json:"description,omitempty"`
	Body        []BodyBlock `json:"body,omitempty"`
}

// BlockKind enumerates rendered output block variants.
type BlockKind string

const (
	BlockLabel     BlockKind = "label"
	BlockTitle     BlockKind = "title"
	BlockBanner    BlockKind = "banner"
	BlockText      BlockKind = "text"
	BlockGallery   BlockKind = "gallery"
	BlockSeparator BlockKind = "separator"
	BlockFooter    BlockKind = "footer"
)

// Block is one structural element of a rendered message.
type Block struct {
	Kind      BlockKind
	Text      string
	URL       string
	Images    []string
	Timestamp time.Time
}

// Message is a rendered, budget-fitted message body ready for a platform
// adapter to translate.
type Message struct {
	AccentColor int
	Blocks      []Block
}

// Title returns the title block text, or "" when absent.
func (m *Message) Title() string {
	for _, b := range m.Blocks {
		if b.Kind == BlockTitle {
			return b.Text
		}
	}
	return ""
}

// Link returns the title block URL, or "" when absent.
func (m *Message) Link() string {
	for _, b := range m.Blocks {
		if b.Kind == BlockTitle {
			return b.URL
		}
	}
	return ""
}

// FooterTime returns the footer timestamp, or the zero time when absent.
func (m *Message) FooterTime() time.Time {
	for _, b := range m.Blocks {
		if b.Kind == BlockFooter {
			return b.Timestamp
		}
	}
	return time.Time{}
}
