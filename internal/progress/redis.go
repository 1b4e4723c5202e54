package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"compile-and-judge/internal/judge"
)

const (
	DefaultRedisPrefix = "judge:progress"
	DefaultRedisTTL    = time.Hour
)

// RedisReporter keeps the latest progress event of every running submission
// so it can be polled, and publishes every event on a channel for
// subscribers that want to stream it.
type RedisReporter struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisReporter(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisReporter {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}

	return &RedisReporter{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisReporter) key(submissionID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, submissionID)
}

// Channel is the pub/sub channel every event is published on.
func (r *RedisReporter) Channel() string {
	return r.prefix
}

func (r *RedisReporter) Progress(ctx context.Context, event *judge.ProgressEvent) error {
	data, err := json.Marshal(event)

	if err != nil {
		return errors.Wrap(err, "failed to marshal progress event")
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(event.SubmissionID), data, r.ttl)
		pipe.Publish(ctx, r.Channel(), data)
		return nil
	})

	return errors.Wrapf(err, "failed to store progress of %s", event.SubmissionID)
}

// Latest returns the last reported event of the submission, nil if nothing
// was reported or the event already expired.
func (r *RedisReporter) Latest(ctx context.Context, submissionID string) (*judge.ProgressEvent, error) {
	data, err := r.client.Get(ctx, r.key(submissionID)).Bytes()

	if err == redis.Nil {
		return nil, nil
	}

	if err != nil {
		return nil, errors.Wrapf(err, "failed to read progress of %s", submissionID)
	}

	var event judge.ProgressEvent

	if err := json.Unmarshal(data, &event); err != nil {
		return nil, errors.Wrapf(err, "failed to decode progress of %s", submissionID)
	}

	return &event, nil
}
