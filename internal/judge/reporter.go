package judge

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Reporter hands the final verdict of a submission back to whoever is
// waiting for it, e.g. by updating a persisted record.
type Reporter interface {
	Report(ctx context.Context, verdict *SubmissionVerdict) error
}

// ProgressEvent describes a state change of a running judgment.
type ProgressEvent struct {
	SubmissionID string `json:"submission_id"`
	Phase        Phase  `json:"phase"`
	// The 1-based test currently running, only set in PhaseRunning.
	Test       int `json:"test,omitempty"`
	TotalTests int `json:"total_tests"`
	// The final verdict, only set in PhaseFinished.
	Verdict   *SubmissionVerdict `json:"verdict,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// ProgressReporter is notified of every state change of a judgment. Failing
// to report progress never changes the verdict.
type ProgressReporter interface {
	Progress(ctx context.Context, event *ProgressEvent) error
}

type nopProgress struct{}

func (nopProgress) Progress(context.Context, *ProgressEvent) error { return nil }

// Reporters fans a verdict out to every reporter, every reporter is called
// even when an earlier one failed.
type Reporters []Reporter

func (r Reporters) Report(ctx context.Context, verdict *SubmissionVerdict) error {
	var firstErr error

	for _, reporter := range r {
		if err := reporter.Report(ctx, verdict); err != nil {
			log.Error().Err(err).Object("verdict", verdict).Msg("failed to report verdict")

			if firstErr == nil {
				firstErr = errors.Wrap(err, "failed to report verdict")
			}
		}
	}

	return firstErr
}

// ProgressReporters fans progress events out to every reporter.
type ProgressReporters []ProgressReporter

func (r ProgressReporters) Progress(ctx context.Context, event *ProgressEvent) error {
	var firstErr error

	for _, reporter := range r {
		if err := reporter.Progress(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// LogReporter writes every verdict to the log.
type LogReporter struct{}

func (LogReporter) Report(_ context.Context, verdict *SubmissionVerdict) error {
	event := log.Info()

	if verdict.Status == SystemError {
		event = log.Error()
	}

	event.Object("verdict", verdict).Msg("submission judged")
	return nil
}

// ReporterFunc adapts a function into a Reporter.
type ReporterFunc func(ctx context.Context, verdict *SubmissionVerdict) error

func (f ReporterFunc) Report(ctx context.Context, verdict *SubmissionVerdict) error {
	return f(ctx, verdict)
}
