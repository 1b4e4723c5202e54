package progress

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compile-and-judge/internal/judge"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	t.Cleanup(func() { _ = client.Close() })

	return server, client
}

func TestRedisReporterStoresLatestEvent(t *testing.T) {
	server, client := newRedis(t)
	reporter := NewRedisReporter(client, "", 0)
	ctx := context.Background()

	latest, err := reporter.Latest(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, reporter.Progress(ctx, &judge.ProgressEvent{
		SubmissionID: "abc",
		Phase:        judge.PhaseRunning,
		Test:         2,
		TotalTests:   3,
	}))

	latest, err = reporter.Latest(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, judge.PhaseRunning, latest.Phase)
	assert.Equal(t, 2, latest.Test)

	finished := 1
	require.NoError(t, reporter.Progress(ctx, &judge.ProgressEvent{
		SubmissionID: "abc",
		Phase:        judge.PhaseFinished,
		TotalTests:   3,
		Verdict: &judge.SubmissionVerdict{
			SubmissionID:          "abc",
			Status:                judge.TimeLimitExceeded,
			FirstFailingTestIndex: &finished,
		},
	}))

	latest, err = reporter.Latest(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, judge.PhaseFinished, latest.Phase)
	require.NotNil(t, latest.Verdict)
	assert.Equal(t, judge.TimeLimitExceeded, latest.Verdict.Status)

	assert.Equal(t, DefaultRedisTTL, server.TTL(DefaultRedisPrefix+":abc"))

	server.FastForward(DefaultRedisTTL + time.Second)

	latest, err = reporter.Latest(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, latest, "events expire")
}

func TestRedisReporterPublishesEvents(t *testing.T) {
	_, client := newRedis(t)
	reporter := NewRedisReporter(client, "custom", time.Minute)
	ctx := context.Background()

	subscription := client.Subscribe(ctx, reporter.Channel())
	defer subscription.Close()

	_, err := subscription.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, reporter.Progress(ctx, &judge.ProgressEvent{SubmissionID: "s1", Phase: judge.PhaseCompiling}))

	select {
	case message := <-subscription.Channel():
		var event judge.ProgressEvent
		require.NoError(t, json.Unmarshal([]byte(message.Payload), &event))
		assert.Equal(t, "s1", event.SubmissionID)
		assert.Equal(t, judge.PhaseCompiling, event.Phase)
	case <-time.After(time.Second * 2):
		t.Fatal("no event was published")
	}
}

func TestRedisReporterUnavailable(t *testing.T) {
	server, client := newRedis(t)
	server.Close()

	err := NewRedisReporter(client, "", 0).Progress(context.Background(), &judge.ProgressEvent{SubmissionID: "x"})
	assert.Error(t, err)
}

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return f.err
}

func TestNatsReporter(t *testing.T) {
	conn := &fakePublisher{}
	reporter := newNatsReporter(conn, "")
	ctx := context.Background()

	require.NoError(t, reporter.Progress(ctx, &judge.ProgressEvent{SubmissionID: "id", Phase: judge.PhaseQueued}))
	require.NoError(t, reporter.Report(ctx, &judge.SubmissionVerdict{SubmissionID: "id", Status: judge.Accepted}))

	assert.Equal(t, []string{"judge.progress.id", "judge.verdict.id"}, conn.subjects)

	var verdict map[string]interface{}
	require.NoError(t, json.Unmarshal(conn.payloads[1], &verdict))
	assert.Equal(t, "Accepted", verdict["status"])
}

func TestNatsReporterPublishFailure(t *testing.T) {
	conn := &fakePublisher{err: errors.New("nats: connection closed")}

	err := newNatsReporter(conn, "grader").Report(context.Background(), &judge.SubmissionVerdict{SubmissionID: "id"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "grader.verdict.id")
}
