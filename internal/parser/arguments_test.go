package parser

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compile-and-judge/internal/judge"
)

func TestDefaults(t *testing.T) {
	args, err := ParseArguments("judge", nil)
	require.NoError(t, err)

	assert.Equal(t, 5, args.MaxConcurrentJudgments)
	assert.Equal(t, "submissions", args.NsqTopic)
	assert.Equal(t, 4150, args.NsqPort)
	assert.Equal(t, zerolog.InfoLevel, args.Level())

	policy, err := args.JudgePolicy()
	require.NoError(t, err)
	assert.Equal(t, judge.StopOnFirstFailure, policy)
}

func TestFlags(t *testing.T) {
	args, err := ParseArguments("judge", []string{
		"-max-concurrent-judgments", "12",
		"-policy", "continue",
		"-nsq-topic", "grading",
		"-log-level", "debug",
		"-force-local-mode",
	})

	require.NoError(t, err)

	assert.Equal(t, 12, args.MaxConcurrentJudgments)
	assert.Equal(t, "grading", args.NsqTopic)
	assert.Equal(t, zerolog.DebugLevel, args.Level())
	assert.True(t, args.ForceLocalMode)

	policy, err := args.JudgePolicy()
	require.NoError(t, err)
	assert.Equal(t, judge.ContinueOnFailure, policy)
}

func TestEnvironment(t *testing.T) {
	t.Setenv("NSQ_CHANNEL", "workers")
	t.Setenv("REDIS_ADDRESS", "redis:6379")

	args, err := ParseArguments("judge", nil)
	require.NoError(t, err)

	assert.Equal(t, "workers", args.NsqChannel)
	assert.Equal(t, "redis:6379", args.RedisAddress)
}

func TestInvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown flag", args: []string{"-unknown"}},
		{name: "unknown policy", args: []string{"-policy", "lenient"}},
		{name: "unknown log level", args: []string{"-log-level", "loud"}},
		{name: "no judgments", args: []string{"-max-concurrent-judgments", "0"}},
		{name: "not a number", args: []string{"-nsq-port", "four"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArguments("judge", tt.args)
			assert.Error(t, err)
		})
	}
}

func TestRedactedDatabase(t *testing.T) {
	args, err := ParseArguments("judge", []string{"-database-connection-string", "password=secret"})
	require.NoError(t, err)

	assert.Equal(t, "password=secret", args.DatabaseConn)
	assert.Equal(t, "[redacted]", args.redacted().DatabaseConn)
}
