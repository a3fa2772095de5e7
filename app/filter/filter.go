package filter

import (
	"fmt"
	"regexp"
	"strings"
)

type PatternKind string

const (
	PatternKeyword PatternKind = "keyword"
	PatternRegex   PatternKind = "regex"
	PatternInvalid PatternKind = "invalid"
)

// MaxPatternLength caps regex literals to keep match cost bounded.
const MaxPatternLength = 256

type Pattern struct {
	Kind PatternKind
	Raw  string
	re   *regexp.Regexp
}

// Shapes known to cause catastrophic backtracking in backtracking engines.
// Go's regexp is RE2 and immune, but operators copy these patterns from
// other bots, so they are rejected up front with a warning instead of
// silently behaving differently.
var dangerousShapes = []*regexp.Regexp{
	regexp.MustCompile(`\([^)]*[+*]\)[+*{]`),         // nested quantifier on a group
	regexp.MustCompile(`\([^)]*\|[^)]*\)[+*{]`),      // quantified alternation
	regexp.MustCompile(`\.\.[+*{]`),                  // quantified '..'
	regexp.MustCompile(`\(\?<[=!][^)]*[+*{][^)]*\)`), // variable-length lookbehind
}

// Parse splits a raw blacklist expression into patterns. Tokens are comma
// separated; a token wrapped in slashes ("/pat/flags") is a regex literal,
// anything else is a plain keyword. Rejected regexes come back tagged
// PatternInvalid together with a human-readable warning, and are skipped at
// match time so a bad pattern can never block delivery.
func Parse(raw string) ([]Pattern, []string) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var patterns []Pattern
	var warnings []string

	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		if !strings.HasPrefix(token, "/") {
			patterns = append(patterns, Pattern{Kind: PatternKeyword, Raw: token})
			continue
		}

		expr, flags, ok := splitRegexLiteral(token)
		if !ok {
			patterns = append(patterns, Pattern{Kind: PatternInvalid, Raw: token})
			warnings = append(warnings, fmt.Sprintf("malformed regex literal %q: missing closing slash", token))
			continue
		}

		if reason := validate(expr); reason != "" {
			patterns = append(patterns, Pattern{Kind: PatternInvalid, Raw: token})
			warnings = append(warnings, fmt.Sprintf("rejected regex %q: %s", token, reason))
			continue
		}

		re, err := regexp.Compile(applyFlags(expr, flags))
		if err != nil {
			patterns = append(patterns, Pattern{Kind: PatternInvalid, Raw: token})
			warnings = append(warnings, fmt.Sprintf("invalid regex %q: %v", token, err))
			continue
		}

		patterns = append(patterns, Pattern{Kind: PatternRegex, Raw: token, re: re})
	}

	return patterns, warnings
}

// Blacklisted reports whether any valid pattern matches the content.
// Invalid patterns are skipped; an empty pattern list never matches.
func Blacklisted(content string, patterns []Pattern) bool {
	if len(patterns) == 0 {
		return false
	}

	lowered := strings.ToLower(content)
	for _, p := range patterns {
		switch p.Kind {
		case PatternKeyword:
			if strings.Contains(lowered, strings.ToLower(p.Raw)) {
				return true
			}
		case PatternRegex:
			if p.re.MatchString(content) {
				return true
			}
		case PatternInvalid:
			// fail-open: never blocks
		}
	}
	return false
}

func splitRegexLiteral(token string) (expr, flags string, ok bool) {
	end := strings.LastIndex(token, "/")
	if end <= 0 {
		return "", "", false
	}
	return token[1:end], token[end+1:], true
}

func validate(expr string) string {
	if expr == "" {
		return "empty pattern"
	}
	if len(expr) > MaxPatternLength {
		return fmt.Sprintf("pattern longer than %d characters", MaxPatternLength)
	}
	for _, shape := range dangerousShapes {
		if shape.MatchString(expr) {
			return "pattern shape prone to catastrophic backtracking"
		}
	}
	return ""
}

func applyFlags(expr, flags string) string {
	var enabled []string
	for _, f := range flags {
		switch f {
		case 'i', 's', 'm':
			enabled = append(enabled, string(f))
		}
	}
	if len(enabled) == 0 {
		return expr
	}
	return "(?" + strings.Join(enabled, "") + ")" + expr
}
