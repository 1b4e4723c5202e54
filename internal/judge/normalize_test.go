package judge

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "only blank lines", input: "\n\n \t\n", expected: ""},
		{name: "windows line endings", input: "a\r\nb\r\n", expected: "a\nb"},
		{name: "lone carriage returns", input: "a\rb\r", expected: "a\nb"},
		{name: "trailing whitespace and blank lines", input: "a \nb\n\n", expected: "a\nb"},
		{name: "trailing tabs", input: "1\t2\t\n3\t", expected: "1\t2\n3"},
		{name: "leading blank lines", input: "\n\n  x\n", expected: "  x"},
		{name: "inner blank lines kept", input: "a\n\nb", expected: "a\n\nb"},
		{name: "leading whitespace kept", input: " a\n  b", expected: " a\n  b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"a\r\nb\r\n",
		"a \nb\n\n",
		"\r\r\n \t\n x \r\n\ty\t\n\n",
		"line\n\n\n",
		" \t \n",
		"\r\n\r\nvalue",
	}

	for _, input := range inputs {
		once := Normalize(input)
		assert.Equal(t, once, Normalize(once), "input %q", input)
	}
}

func TestOutputMatches(t *testing.T) {
	assert.True(t, OutputMatches("a\r\nb\r\n", "a\nb"))
	assert.True(t, OutputMatches("a \nb\n\n", "a\nb"))
	assert.True(t, OutputMatches("cba\n", "cba"))
	assert.False(t, OutputMatches("a b", "a  b"))
	assert.False(t, OutputMatches("A", "a"))
	assert.False(t, OutputMatches("a\n\nb", "a\nb"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "unbounded", Truncate("unbounded", 0))

	truncated := Truncate(strings.Repeat("x", 100), 20)
	assert.Len(t, truncated, 20)
	assert.True(t, strings.HasSuffix(truncated, "[...]"))

	assert.Equal(t, "xyz", Truncate("xyzxyz", 3))

	// never splits a multi byte character.
	multiByte := Truncate(strings.Repeat("é", 20), 12)
	assert.True(t, utf8.ValidString(multiByte))
	assert.LessOrEqual(t, len(multiByte), 12)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "", Excerpt("", 2, 2))
	assert.Equal(t, "ab\ncd", Excerpt("ab\ncd", 2, 2))
	assert.Equal(t, "ab[...]\ncd", Excerpt("abc\ncd", 2, 2))
	assert.Equal(t, "a\nb\n[...]", Excerpt("a\nb\nc\nd", 2, 5))

	excerpt := Excerpt(strings.Repeat("界", 10), 1, 4)
	assert.True(t, utf8.ValidString(excerpt))
	assert.Equal(t, "界[...]", excerpt)
}
