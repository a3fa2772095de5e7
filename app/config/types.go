// Package config loads per-category definition files: where a category's news
// comes from, how often to poll it, and how its messages are styled.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"newsherald/app/source"
)

// Category is one news category definition, loaded from a YAML file.
type Category struct {
	Name     string         `yaml:"name"`
	Source   SourceSettings `yaml:"source"`
	Schedule string         `yaml:"schedule"`
	Color    string         `yaml:"color"`
	Enabled  bool           `yaml:"enabled"`
}

// SourceSettings describes the category's upstream endpoint.
type SourceSettings struct {
	URL    string        `yaml:"url"`
	Format source.Format `yaml:"format"`
	Limit  int           `yaml:"limit"`
}

// Accent returns the category's embed color as an integer, or nil when the
// color is missing or unparsable. Callers must treat nil as unrenderable.
func (c *Category) Accent() *int {
	raw := strings.TrimPrefix(strings.TrimSpace(c.Color), "#")
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 16, 32)
	if err != nil || v < 0 || v > 0xffffff {
		return nil
	}
	accent := int(v)
	return &accent
}

func (c *Category) validate() error {
	if c.Name == "" {
		return fmt.Errorf("category name is required")
	}
	if c.Source.URL == "" {
		return fmt.Errorf("source url is required")
	}
	switch c.Source.Format {
	case source.FormatJSON, source.FormatRSS:
	default:
		return fmt.Errorf("unknown source format: %q", c.Source.Format)
	}
	if c.Source.Limit < 0 {
		return fmt.Errorf("source limit must be non-negative")
	}
	return nil
}
