package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryConversions(t *testing.T) {
	assert.Equal(t, int64(1024), Kilobyte.Bytes())
	assert.Equal(t, int64(1024), Megabyte.Kilobytes())
	assert.Equal(t, int64(256), (Megabyte * 256).Megabytes())
	assert.Equal(t, int64(2), (Gigabyte * 2).Gigabytes())
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  Memory
	}{{
		name:  "megabytes with short suffix",
		value: "256m",
		want:  Megabyte * 256,
	}, {
		name:  "gigabytes with long suffix",
		value: "1GB",
		want:  Gigabyte,
	}, {
		name:  "kilobytes",
		value: "512k",
		want:  Kilobyte * 512,
	}, {
		name:  "bare number is bytes",
		value: "4096",
		want:  Byte * 4096,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.value)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("should reject garbage", func(t *testing.T) {
		_, err := Parse("lots")
		assert.Error(t, err)
	})
}

func TestMemoryTextRoundTrip(t *testing.T) {
	var m Memory

	require.NoError(t, m.UnmarshalText([]byte("64m")))
	assert.Equal(t, Megabyte*64, m)

	text, err := m.MarshalText()
	require.NoError(t, err)

	var back Memory
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, m, back)
}
