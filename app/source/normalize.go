package source

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// NormalizeTitle folds a source title into its canonical form for identity
// matching. The source mixes full-width and half-width characters between
// edits of the same article, so the natural key folds width and applies NFKC
// before comparison.
func NormalizeTitle(s string) string {
	s = strings.TrimSpace(s)
	s = width.Fold.String(s)
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeDate renders an item timestamp in the source's own timezone. The
// source has no stable numeric id, so (title, date-in-source-timezone) is the
// identity; using the source timezone keeps the key stable across pollers
// running under different local clocks.
func NormalizeDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02 15:04")
}
