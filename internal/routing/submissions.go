package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"compile-and-judge/internal/files"
	"compile-and-judge/internal/judge"
	"compile-and-judge/internal/queue"
	"compile-and-judge/internal/repository"
	"compile-and-judge/internal/sandbox"
	"compile-and-judge/internal/validation"
)

// ProgressSource provides the latest progress of a running judgment.
type ProgressSource interface {
	Latest(ctx context.Context, submissionID string) (*judge.ProgressEvent, error)
}

type SubmissionHandlers struct {
	FileHandler files.Files
	Repo        repository.Repository
	Queue       queue.Queue
	Registry    *sandbox.Registry
	Translator  ut.Translator
	Validator   *validator.Validate

	// Progress is optional, without it pending submissions carry no progress.
	Progress ProgressSource
}

func (h *SubmissionHandlers) HandleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var request SubmissionRequest

	if err := dec.Decode(&request); err != nil {
		handleDecodeError(w, err)
		return
	}

	if err := h.Validator.Struct(request); err != nil {
		handleErrorResponse(w, http.StatusBadRequest, validation.TranslateError(err, h.Translator)...)
		return
	}

	if _, err := h.Registry.Resolve(request.Language); err != nil {
		handleErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Unsupported language: %s", request.Language))
		return
	}

	id := uuid.NewString()
	logger := log.With().Str("id", id).Str("language", request.Language).Logger()

	tests, _ := json.Marshal(request.Tests)

	if errs := h.FileHandler.WriteFiles(
		&files.File{ID: id, Name: files.SourceFile, Data: []byte(request.SourceCode)},
		&files.File{ID: id, Name: files.TestsFile, Data: tests},
	); len(errs) > 0 {
		logger.Error().Errs("errors", errs).Msg("failed to store submission files")
		handleErrorResponse(w, http.StatusInternalServerError, "failed to store the submission")
		return
	}

	if err := h.Repo.InsertSubmission(r.Context(), repository.NewPendingSubmission(id, request.Language, request.totalPoints())); err != nil {
		logger.Error().Err(err).Msg("failed to insert submission")
		handleErrorResponse(w, http.StatusInternalServerError, "failed to store the submission")
		return
	}

	message, _ := json.Marshal(queue.SubmissionMessage{
		ID:       id,
		Language: request.Language,
		Limits:   request.Limits,
	})

	if err := h.Queue.SubmitMessageToQueue(message); err != nil {
		logger.Error().Err(err).Msg("failed to queue submission")

		// the submission will never be judged, so it is finished as a system
		// error rather than left pending forever.
		_ = h.Repo.UpdateVerdict(r.Context(), &judge.SubmissionVerdict{
			SubmissionID: id,
			Status:       judge.SystemError,
			ScoreTotal:   request.totalPoints(),
			Message:      "Failed to queue the submission for judging",
		})

		handleErrorResponse(w, http.StatusInternalServerError, "failed to queue the submission")
		return
	}

	logger.Info().Int("tests", len(request.Tests)).Msg("queued submission")
	handleJSONResponse(w, QueuedSubmissionResponse{ID: id}, http.StatusAccepted)
}

func (h *SubmissionHandlers) HandleGetSubmission(w http.ResponseWriter, r *http.Request) {
	parsedID, err := uuid.Parse(mux.Vars(r)["id"])

	if err != nil {
		handleErrorResponse(w, http.StatusBadRequest, "failed to parse id value")
		return
	}

	record, err := h.Repo.GetSubmission(r.Context(), parsedID.String())

	if errors.Is(err, repository.ErrNotFound) {
		handleErrorResponse(w, http.StatusNotFound, "the submission does not exist by the provided id.")
		return
	}

	if err != nil {
		log.Error().Err(err).Str("id", parsedID.String()).Msg("failed to get submission")
		handleErrorResponse(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	verdict, err := record.Verdict()

	if err != nil {
		log.Error().Err(err).Msg("stored submission has an invalid verdict")
		handleErrorResponse(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	response := newSubmissionResponse(record, verdict)

	if !verdict.Status.Finished() && h.Progress != nil {
		progress, progressErr := h.Progress.Latest(r.Context(), record.ID)

		if progressErr != nil {
			log.Warn().Err(progressErr).Str("id", record.ID).Msg("failed to get submission progress")
		}

		response.Progress = progress
	}

	handleJSONResponse(w, response, http.StatusOK)
}

func (h *SubmissionHandlers) HandleGetLanguages(w http.ResponseWriter, _ *http.Request) {
	profiles := h.Registry.Languages()
	languages := make([]LanguageResponse, 0, len(profiles))

	for i := range profiles {
		languages = append(languages, newLanguageResponse(&profiles[i]))
	}

	handleJSONResponse(w, languages, http.StatusOK)
}
