package filter

import (
	"strings"
	"testing"
)

func TestParse_Empty(t *testing.T) {
	patterns, warnings := Parse("")
	if len(patterns) != 0 {
		t.Errorf("Expected no patterns, got %d", len(patterns))
	}
	if len(warnings) != 0 {
		t.Errorf("Expected no warnings, got %d", len(warnings))
	}

	patterns, _ = Parse("  ,  , ")
	if len(patterns) != 0 {
		t.Errorf("Expected no patterns from blank tokens, got %d", len(patterns))
	}
}

func TestParse_KeywordsAndRegexes(t *testing.T) {
	patterns, warnings := Parse("maintenance, /emergency/i, lottery")

	if len(patterns) != 3 {
		t.Fatalf("Expected 3 patterns, got %d", len(patterns))
	}
	if len(warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", warnings)
	}

	if patterns[0].Kind != PatternKeyword || patterns[0].Raw != "maintenance" {
		t.Errorf("First pattern should be keyword 'maintenance', got %+v", patterns[0])
	}
	if patterns[1].Kind != PatternRegex {
		t.Errorf("Second pattern should be regex, got %+v", patterns[1])
	}
	if patterns[2].Kind != PatternKeyword || patterns[2].Raw != "lottery" {
		t.Errorf("Third pattern should be keyword 'lottery', got %+v", patterns[2])
	}
}

func TestParse_RejectsDangerousShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"nested quantifier", "/(a+)+/"},
		{"quantified alternation", "/(foo|bar)+/"},
		{"quantified double dot", "/a..*/"},
		{"variable-length lookbehind", "/(?<=a+)b/"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			patterns, warnings := Parse(tc.raw)
			if len(patterns) != 1 {
				t.Fatalf("Expected 1 pattern, got %d", len(patterns))
			}
			if patterns[0].Kind != PatternInvalid {
				t.Errorf("Pattern %q should be invalid, got kind %s", tc.raw, patterns[0].Kind)
			}
			if len(warnings) != 1 {
				t.Errorf("Expected 1 warning, got %v", warnings)
			}
		})
	}
}

func TestParse_RejectsEmptyAndOversized(t *testing.T) {
	patterns, warnings := Parse("//")
	if patterns[0].Kind != PatternInvalid {
		t.Errorf("Empty regex should be invalid")
	}
	if len(warnings) != 1 {
		t.Errorf("Expected warning for empty regex")
	}

	long := "/" + strings.Repeat("a", MaxPatternLength+1) + "/"
	patterns, warnings = Parse(long)
	if patterns[0].Kind != PatternInvalid {
		t.Errorf("Oversized regex should be invalid")
	}
	if len(warnings) != 1 {
		t.Errorf("Expected warning for oversized regex")
	}
}

func TestParse_MalformedLiteral(t *testing.T) {
	patterns, warnings := Parse("/unclosed")
	if patterns[0].Kind != PatternInvalid {
		t.Errorf("Unclosed literal should be invalid")
	}
	if len(warnings) != 1 {
		t.Errorf("Expected warning for unclosed literal")
	}
}

func TestBlacklisted_Keyword(t *testing.T) {
	patterns, _ := Parse("Maintenance")

	if !Blacklisted("Scheduled maintenance for all Worlds", patterns) {
		t.Errorf("Case-insensitive substring should match")
	}
	if Blacklisted("Patch notes published", patterns) {
		t.Errorf("Unrelated content should not match")
	}
}

func TestBlacklisted_Regex(t *testing.T) {
	patterns, warnings := Parse(`/^Emergency/i`)
	if len(warnings) != 0 {
		t.Fatalf("Unexpected warnings: %v", warnings)
	}

	if !Blacklisted("emergency maintenance tonight", patterns) {
		t.Errorf("Anchored case-insensitive regex should match")
	}
	if Blacklisted("no emergency here", patterns) {
		t.Errorf("Anchor should prevent mid-string match")
	}
}

func TestBlacklisted_FailOpen(t *testing.T) {
	// An invalid pattern must never block content, even when it would
	// textually match.
	patterns, warnings := Parse("/(a+)+/")
	if len(warnings) == 0 {
		t.Fatalf("Expected a warning for the rejected pattern")
	}

	if Blacklisted("aaaa", patterns) {
		t.Errorf("Invalid pattern must be skipped at match time")
	}
}

func TestBlacklisted_EmptyList(t *testing.T) {
	if Blacklisted("anything", nil) {
		t.Errorf("Empty pattern list must never match")
	}
}

func TestBlacklisted_MixedValidInvalid(t *testing.T) {
	patterns, _ := Parse("/(a+)+/, festival")

	if !Blacklisted("Moonfire Festival begins", patterns) {
		t.Errorf("Valid keyword should still match alongside an invalid pattern")
	}
}
