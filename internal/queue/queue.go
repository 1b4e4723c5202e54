package queue

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"compile-and-judge/internal/memory"
	"compile-and-judge/internal/sandbox"
)

// ErrMalformedMessage marks messages that can never be judged, they are
// acknowledged and dropped instead of being redelivered.
var ErrMalformedMessage = errors.New("malformed submission message")

// SubmissionMessage is the message published by the api for every accepted
// submission. The source code and test cases are too large for the queue and
// are stored in files under the submission id.
type SubmissionMessage struct {
	ID       string        `json:"id" validate:"required,uuid"`
	Language string        `json:"language" validate:"required"`
	Limits   LimitsMessage `json:"limits"`
}

// LimitsMessage carries the requested limits, zero values fall back to the
// defaults of the worker profile.
type LimitsMessage struct {
	WallTimeMs    int64   `json:"wall_time_ms,omitempty" validate:"gte=0"`
	CompileTimeMs int64   `json:"compile_time_ms,omitempty" validate:"gte=0"`
	MemoryMb      int64   `json:"memory_mb,omitempty" validate:"gte=0"`
	CPUShare      float64 `json:"cpu_share,omitempty" validate:"gte=0"`
	PidLimit      int64   `json:"pid_limit,omitempty" validate:"gte=0"`
}

func NewLimitsMessage(limits sandbox.ResourceLimits) LimitsMessage {
	return LimitsMessage{
		WallTimeMs:    limits.WallTime.Milliseconds(),
		CompileTimeMs: limits.CompileTime.Milliseconds(),
		MemoryMb:      limits.Memory.Megabytes(),
		CPUShare:      limits.CPUShare,
		PidLimit:      limits.PidLimit,
	}
}

func (l LimitsMessage) ResourceLimits() sandbox.ResourceLimits {
	return sandbox.ResourceLimits{
		WallTime:    time.Duration(l.WallTimeMs) * time.Millisecond,
		CompileTime: time.Duration(l.CompileTimeMs) * time.Millisecond,
		Memory:      memory.Memory(l.MemoryMb) * memory.Megabyte,
		CPUShare:    l.CPUShare,
		PidLimit:    l.PidLimit,
	}
}

// Handler processes the body of a single message. A returned error causes
// the message to be redelivered unless it wraps ErrMalformedMessage.
type Handler interface {
	HandleMessage(ctx context.Context, body []byte) error
}

type HandlerFunc func(ctx context.Context, body []byte) error

func (f HandlerFunc) HandleMessage(ctx context.Context, body []byte) error {
	return f(ctx, body)
}

type Queue interface {
	SubmitMessageToQueue(data []byte) error
	Stop()
}

type Config struct {
	Nsq *NsqConfig
	Sqs *SqsConfig

	// Handler consumes the messages, only required for consumers.
	Handler Handler

	// ForceLocalMode will use NSQ even when SQS is configured.
	ForceLocalMode bool
}

// NewQueue returns the SQS queue when a queue url is configured, otherwise
// the NSQ queue used for local and single host deployments.
func NewQueue(config *Config) (Queue, error) {
	if !config.ForceLocalMode && config.Sqs != nil && config.Sqs.QueueURL != "" {
		return NewSqsQueue(config.Sqs, config.Handler)
	}

	if config.Nsq == nil {
		return nil, errors.New("no queue has been configured")
	}

	return NewNsqQueue(config.Nsq, config.Handler)
}
