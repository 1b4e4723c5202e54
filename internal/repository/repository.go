package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"compile-and-judge/internal/judge"
)

// ErrNotFound is returned when no submission exists for the given id.
var ErrNotFound = errors.New("submission not found")

type Repository interface {
	InsertSubmission(ctx context.Context, submission *Submission) error
	UpdateVerdict(ctx context.Context, verdict *judge.SubmissionVerdict) error
	GetSubmission(ctx context.Context, id string) (*Submission, error)
}

type Client struct {
	DB *gorm.DB
}

var (
	_ Repository     = (*Client)(nil)
	_ judge.Reporter = (*Client)(nil)
)

func NewRepository(connectionUrl string) (*Client, error) {
	db, err := gorm.Open(postgres.Open(connectionUrl), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})

	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to the database")
	}

	if err := db.AutoMigrate(&Submission{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate the database")
	}

	return &Client{DB: db}, nil
}

// Report stores the verdict, the repository is used as one of the reporters
// of the judge pool.
func (c *Client) Report(ctx context.Context, verdict *judge.SubmissionVerdict) error {
	return c.UpdateVerdict(ctx, verdict)
}
