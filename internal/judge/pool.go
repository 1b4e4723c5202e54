package judge

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrPoolClosed is returned for submissions handed to a pool that is shutting
// down, the submission was never started.
var ErrPoolClosed = errors.New("judge pool is closed")

type Pool struct {
	// the limiter will be a buffered channel used to determine the number of
	// possible judgments that can be executed at any one time. When the
	// judgment is finished the buffered channel will be popped, pushing will
	// result in a block until the pop has been executed.
	limiter  chan struct{}
	judge    *Judge
	reporter Reporter

	mu       sync.Mutex
	closed   bool
	closing  chan struct{}
	inflight sync.WaitGroup
}

func NewPool(judge *Judge, maxConcurrentJudgments int, reporter Reporter) *Pool {
	if maxConcurrentJudgments <= 0 {
		maxConcurrentJudgments = 1
	}

	if reporter == nil {
		reporter = LogReporter{}
	}

	return &Pool{
		limiter:  make(chan struct{}, maxConcurrentJudgments),
		judge:    judge,
		reporter: reporter,
		closing:  make(chan struct{}),
	}
}

// acquire blocks until a judgment slot is free. Submissions still waiting
// for a slot are dropped when the context is cancelled, judgments that
// already started always run to completion.
func (p *Pool) acquire(ctx context.Context) error {
	select {
	case p.limiter <- struct{}{}:
	case <-p.closing:
		return ErrPoolClosed
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "submission was not started")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		<-p.limiter
		return ErrPoolClosed
	}

	p.inflight.Add(1)
	return nil
}

func (p *Pool) release() {
	<-p.limiter
	p.inflight.Done()
}

// Judge blocks until the submission has been judged and its verdict
// reported. The returned error is only the failure to report.
func (p *Pool) Judge(ctx context.Context, submission *Submission) (*SubmissionVerdict, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}

	defer p.release()

	// the judgment is not interrupted once it started.
	ctx = context.WithoutCancel(ctx)

	verdict := p.judge.Evaluate(ctx, submission)
	return verdict, p.reporter.Report(ctx, verdict)
}

// Submit judges the submission in the background, done is called with the
// verdict once it has been reported.
func (p *Pool) Submit(ctx context.Context, submission *Submission, done func(*SubmissionVerdict, error)) error {
	if err := p.acquire(ctx); err != nil {
		return err
	}

	ctx = context.WithoutCancel(ctx)

	go func() {
		defer p.release()

		verdict := p.judge.Evaluate(ctx, submission)
		err := p.reporter.Report(ctx, verdict)

		if done != nil {
			done(verdict, err)
		}
	}()

	return nil
}

// Close stops accepting new submissions and waits for every running
// judgment to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.closing)
	}
	p.mu.Unlock()

	log.Info().Msg("waiting for running judgments to finish")
	p.inflight.Wait()
}
