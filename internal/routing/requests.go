package routing

import (
	"compile-and-judge/internal/judge"
	"compile-and-judge/internal/queue"
)

type SubmissionRequest struct {
	Language   string              `json:"language" validate:"required,max=32"`
	SourceCode string              `json:"source_code" validate:"required,max=1048576"`
	Tests      []judge.TestCase    `json:"tests" validate:"required,min=1,max=500,dive"`
	Limits     queue.LimitsMessage `json:"limits"`
}

func (s *SubmissionRequest) totalPoints() int {
	return (&judge.Submission{Tests: s.Tests}).TotalPoints()
}
