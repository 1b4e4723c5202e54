package judge

import (
	"strings"
	"unicode/utf8"
)

// Normalize canonicalizes program output before it is compared. Line endings
// are converted to \n, trailing spaces and tabs are removed from every line
// and leading and trailing blank lines are dropped. Normalize is idempotent.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")

	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}

	start, end := 0, len(lines)

	for start < end && lines[start] == "" {
		start++
	}

	for end > start && lines[end-1] == "" {
		end--
	}

	return strings.Join(lines[start:end], "\n")
}

// OutputMatches is the sole criterion deciding between an accepted test and
// a wrong answer.
func OutputMatches(actual, expected string) bool {
	return Normalize(actual) == Normalize(expected)
}

const truncationMarker = "[...]"

// Truncate bounds the text to at most limit bytes without splitting a utf-8
// sequence. Truncated text ends with a marker.
func Truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}

	if limit <= len(truncationMarker) {
		return text[:runeBoundary(text, limit)]
	}

	return text[:runeBoundary(text, limit-len(truncationMarker))] + truncationMarker
}

// runeBoundary moves the cut back to the start of the utf-8 sequence it
// would otherwise split.
func runeBoundary(text string, cut int) int {
	for cut > 0 && cut < len(text) && !utf8.RuneStart(text[cut]) {
		cut--
	}

	return cut
}

// Excerpt bounds the text to a rectangle of lines and columns, marking
// every place something was cut.
func Excerpt(text string, height, width int) string {
	if text == "" {
		return ""
	}

	lines := strings.Split(text, "\n")

	if len(lines) > height {
		lines = append(lines[:height:height], truncationMarker)
	}

	var builder strings.Builder

	for i, line := range lines {
		if i > 0 {
			builder.WriteByte('\n')
		}

		if len(line) > width {
			builder.WriteString(line[:runeBoundary(line, width)])
			builder.WriteString(truncationMarker)
			continue
		}

		builder.WriteString(line)
	}

	return builder.String()
}
