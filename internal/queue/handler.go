package queue

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"compile-and-judge/internal/files"
	"compile-and-judge/internal/judge"
	"compile-and-judge/internal/metrics"
)

// SubmissionHandler judges every submission message through the pool. The
// verdict is reported by the reporters of the pool.
type SubmissionHandler struct {
	pool     *judge.Pool
	files    files.Files
	validate *validator.Validate
}

func NewSubmissionHandler(pool *judge.Pool, fileHandler files.Files, validate *validator.Validate) *SubmissionHandler {
	return &SubmissionHandler{pool: pool, files: fileHandler, validate: validate}
}

func (h *SubmissionHandler) HandleMessage(ctx context.Context, body []byte) error {
	submission, err := h.decode(body)

	if err != nil {
		return err
	}

	verdict, err := h.pool.Judge(ctx, submission)

	if err != nil {
		return errors.Wrapf(err, "failed to judge submission %s", submission.ID)
	}

	log.Debug().Object("verdict", verdict).Msg("judged queued submission")
	return nil
}

func (h *SubmissionHandler) decode(body []byte) (*judge.Submission, error) {
	var message SubmissionMessage

	if err := json.Unmarshal(body, &message); err != nil {
		return nil, errors.Wrapf(ErrMalformedMessage, "failed to parse submission message: %s", err)
	}

	if err := h.validate.Struct(message); err != nil {
		return nil, errors.Wrapf(ErrMalformedMessage, "invalid submission message: %s", err)
	}

	source, err := h.loadFile(message.ID, files.SourceFile)

	if err != nil {
		return nil, err
	}

	data, err := h.loadFile(message.ID, files.TestsFile)

	if err != nil {
		return nil, err
	}

	var tests []judge.TestCase

	if err := json.Unmarshal(data, &tests); err != nil {
		return nil, errors.Wrapf(ErrMalformedMessage, "failed to parse tests of %s: %s", message.ID, err)
	}

	for i := range tests {
		if err := h.validate.Struct(tests[i]); err != nil {
			return nil, errors.Wrapf(ErrMalformedMessage, "invalid test #%d of %s: %s", i+1, message.ID, err)
		}
	}

	return &judge.Submission{
		ID:         message.ID,
		Language:   message.Language,
		SourceCode: string(source),
		Tests:      tests,
		Limits:     message.Limits.ResourceLimits(),
	}, nil
}

// loadFile treats missing files as malformed, the submission was never fully
// stored and redelivery will not change that.
func (h *SubmissionHandler) loadFile(id string, name string) ([]byte, error) {
	data, err := h.files.GetFile(id, name)

	if errors.Is(err, files.ErrFileNotFound) {
		return nil, errors.Wrapf(ErrMalformedMessage, "%s", err)
	}

	return data, err
}

// dispatch runs the handler for a single message and reports if the message
// is finished with, either handled or dropped.
func dispatch(ctx context.Context, transport string, handler Handler, id string, body []byte) bool {
	err := handler.HandleMessage(ctx, body)

	switch {
	case err == nil:
		metrics.QueueMessages.WithLabelValues(transport, "judged").Inc()
		return true

	case errors.Is(err, ErrMalformedMessage):
		log.Warn().Err(err).Str("transport", transport).Str("id", id).
			Msg("dropping malformed submission message")

		metrics.QueueMessages.WithLabelValues(transport, "rejected").Inc()
		return true

	default:
		log.Error().Err(err).Str("transport", transport).Str("id", id).
			Msg("failed to handle submission message")

		metrics.QueueMessages.WithLabelValues(transport, "requeued").Inc()
		return false
	}
}
