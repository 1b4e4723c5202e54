package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"compile-and-judge/internal/judge"
)

// Submission is the persisted state of a submission, the verdict columns are
// only set once the submission has been judged.
type Submission struct {
	ID       string `gorm:"primarykey"`
	Language string

	Status           string `gorm:"index"`
	ScoreEarned      int
	ScoreTotal       int
	TotalTimeMs      int64
	PeakMemoryKb     int64
	Message          string
	FirstFailingTest *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// verdictColumns are overwritten when a verdict is stored.
var verdictColumns = []string{
	"status", "score_earned", "score_total", "total_time_ms",
	"peak_memory_kb", "message", "first_failing_test", "updated_at",
}

// NewPendingSubmission is the record stored when the submission is accepted.
func NewPendingSubmission(id string, language string, scoreTotal int) *Submission {
	return &Submission{
		ID:         id,
		Language:   language,
		Status:     judge.Pending.String(),
		ScoreTotal: scoreTotal,
	}
}

func (s *Submission) Verdict() (*judge.SubmissionVerdict, error) {
	status, err := judge.ParseStatus(s.Status)

	if err != nil {
		return nil, errors.Wrapf(err, "submission %s", s.ID)
	}

	return &judge.SubmissionVerdict{
		SubmissionID:          s.ID,
		Status:                status,
		ScoreEarned:           s.ScoreEarned,
		ScoreTotal:            s.ScoreTotal,
		TotalTimeMs:           s.TotalTimeMs,
		PeakMemoryKb:          s.PeakMemoryKb,
		Message:               s.Message,
		FirstFailingTestIndex: s.FirstFailingTest,
	}, nil
}

func fromVerdict(verdict *judge.SubmissionVerdict) *Submission {
	return &Submission{
		ID:               verdict.SubmissionID,
		Status:           verdict.Status.String(),
		ScoreEarned:      verdict.ScoreEarned,
		ScoreTotal:       verdict.ScoreTotal,
		TotalTimeMs:      verdict.TotalTimeMs,
		PeakMemoryKb:     verdict.PeakMemoryKb,
		Message:          verdict.Message,
		FirstFailingTest: verdict.FirstFailingTestIndex,
	}
}

// upsertVerdict writes the verdict columns, creating the record when the
// submission never went through the api, e.g. when judged locally.
func upsertVerdict(db *gorm.DB, record *Submission) *gorm.DB {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(verdictColumns),
	}).Create(record)
}

func (c *Client) InsertSubmission(ctx context.Context, submission *Submission) error {
	return errors.Wrapf(c.DB.WithContext(ctx).Create(submission).Error,
		"failed to insert submission %s", submission.ID)
}

func (c *Client) UpdateVerdict(ctx context.Context, verdict *judge.SubmissionVerdict) error {
	return errors.Wrapf(upsertVerdict(c.DB.WithContext(ctx), fromVerdict(verdict)).Error,
		"failed to store the verdict of %s", verdict.SubmissionID)
}

func (c *Client) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	var submission Submission

	err := c.DB.WithContext(ctx).Where("id = ?", id).First(&submission).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "by id %s", id)
	}

	if err != nil {
		return nil, errors.Wrapf(err, "failed to get submission %s", id)
	}

	return &submission, nil
}
