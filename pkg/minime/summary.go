package minime

import (
	"strings"
	"unicode/utf8"
)

//nolint:gochecknoglobals
var (
	completionPhrases = []string{CompletionSentinel, "I have completed"}
	stuckPhrases      = []string{"I need help", "I cannot"}
)

// IsComplete reports whether text signals the task is done.
func IsComplete(text string) bool {
	return containsAny(text, completionPhrases)
}

// IsStuck reports whether text signals the model needs a more capable tier.
func IsStuck(text string) bool {
	return containsAny(text, stuckPhrases)
}

// ExtractSummary returns the text after the completion sentinel, or the last
// five lines when the sentinel is absent or nothing follows it.
func ExtractSummary(text string) string {
	if idx := strings.Index(text, CompletionSentinel); idx >= 0 {
		if after := strings.TrimSpace(text[idx+len(CompletionSentinel):]); after != "" {
			return strings.TrimSpace(strings.TrimLeft(after, ":-"))
		}
	}
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, "\n")
}

const truncatedMarker = "\n[summary truncated]"

// Bound truncates s to at most maxBytes, preferring a line boundary and never
// splitting a rune.
func Bound(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	limit := maxBytes - len(truncatedMarker)
	if limit <= 0 {
		return cutRunes(s, maxBytes)
	}
	cut := cutRunes(s, limit)
	if nl := strings.LastIndexByte(cut, '\n'); nl > limit/2 {
		cut = cut[:nl]
	}
	return cut + truncatedMarker
}

func cutRunes(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// bulletFindings collects "- " and "* " lines from a summary.
func bulletFindings(summary string) []string {
	var out []string
	for _, line := range strings.Split(summary, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
			out = append(out, strings.TrimSpace(line[2:]))
		}
	}
	return out
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
