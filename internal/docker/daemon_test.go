package docker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRuntimeConfigured(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{{
		name:    "should find configured runsc runtime",
		content: `{"runtimes": {"runsc": {"path": "/usr/local/bin/runsc"}}}`,
		want:    true,
	}, {
		name:    "should not find runtime when only others are configured",
		content: `{"runtimes": {"kata": {"path": "/usr/bin/kata-runtime"}}}`,
		want:    false,
	}, {
		name:    "should not find runtime in an invalid file",
		content: `{"runtimes": `,
		want:    false,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "daemon.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			assert.Equal(t, tt.want, IsRuntimeConfigured(path, GVisorRuntime))
		})
	}

	t.Run("should not find runtime when the daemon file is missing", func(t *testing.T) {
		assert.False(t, IsRuntimeConfigured(filepath.Join(t.TempDir(), "missing.json"), GVisorRuntime))
	})
}
