package progress

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"compile-and-judge/internal/judge"
)

const DefaultNatsSubject = "judge"

// publisher is the part of a nats connection the reporter needs.
type publisher interface {
	Publish(subject string, data []byte) error
}

var _ publisher = (*nats.Conn)(nil)

// NatsReporter streams progress events to <subject>.progress.<submission>
// and final verdicts to <subject>.verdict.<submission>.
type NatsReporter struct {
	conn    publisher
	subject string
}

func NewNatsReporter(conn *nats.Conn, subject string) *NatsReporter {
	return newNatsReporter(conn, subject)
}

func newNatsReporter(conn publisher, subject string) *NatsReporter {
	if subject == "" {
		subject = DefaultNatsSubject
	}

	return &NatsReporter{conn: conn, subject: subject}
}

func (n *NatsReporter) ProgressSubject(submissionID string) string {
	return fmt.Sprintf("%s.progress.%s", n.subject, submissionID)
}

func (n *NatsReporter) VerdictSubject(submissionID string) string {
	return fmt.Sprintf("%s.verdict.%s", n.subject, submissionID)
}

func (n *NatsReporter) Progress(_ context.Context, event *judge.ProgressEvent) error {
	return n.send(n.ProgressSubject(event.SubmissionID), event)
}

func (n *NatsReporter) Report(_ context.Context, verdict *judge.SubmissionVerdict) error {
	return n.send(n.VerdictSubject(verdict.SubmissionID), verdict)
}

func (n *NatsReporter) send(subject string, msg interface{}) error {
	data, err := json.Marshal(msg)

	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}

	return errors.Wrapf(n.conn.Publish(subject, data), "failed to publish message to %s", subject)
}
