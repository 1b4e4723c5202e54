package routing

import (
	"time"

	"compile-and-judge/internal/judge"
	"compile-and-judge/internal/repository"
	"compile-and-judge/internal/sandbox"
)

type ErrorResponse struct {
	Errors []string `json:"errors"`
	Code   int      `json:"code"`
}

type QueuedSubmissionResponse struct {
	ID string `json:"id"`
}

type SubmissionResponse struct {
	ID       string `json:"id"`
	Language string `json:"language"`

	judge.SubmissionVerdict

	// The latest progress of a submission that is still being judged.
	Progress *judge.ProgressEvent `json:"progress,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newSubmissionResponse(record *repository.Submission, verdict *judge.SubmissionVerdict) SubmissionResponse {
	return SubmissionResponse{
		ID:                record.ID,
		Language:          record.Language,
		SubmissionVerdict: *verdict,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}
}

type LanguageResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Compiled    bool   `json:"compiled"`
	Image       string `json:"image"`
}

func newLanguageResponse(profile *sandbox.LanguageProfile) LanguageResponse {
	return LanguageResponse{
		ID:          profile.ID,
		DisplayName: profile.DisplayName,
		Compiled:    !profile.Interpreted(),
		Image:       profile.RuntimeImage,
	}
}
