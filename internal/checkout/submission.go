package checkout

import (
	"context"
	"time"
)

// Acceptance is the backend's answer to a successful submission.
type Acceptance struct {
	OrderID  string
	Redirect *PaymentRedirect
}

// Submission is the handle for one in-flight order.
type Submission struct {
	draft      *OrderDraft
	generation uint64
	started    time.Time
	done       chan struct{}

	acceptance *Acceptance
	err        error
}

func newSubmission(draft *OrderDraft, generation uint64, started time.Time) *Submission {
	return &Submission{
		draft:      draft,
		generation: generation,
		started:    started,
		done:       make(chan struct{}),
	}
}

func (s *Submission) Draft() *OrderDraft { return s.draft }

// Done is closed once the backend has answered.
func (s *Submission) Done() <-chan struct{} { return s.done }

// Wait blocks until the submission settles or ctx ends. Abandoned submissions
// resolve with ErrSubmissionDiscarded.
func (s *Submission) Wait(ctx context.Context) (*Acceptance, error) {
	select {
	case <-s.done:
		return s.acceptance, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Submission) resolve(acceptance *Acceptance, err error) {
	s.acceptance = acceptance
	s.err = err
	close(s.done)
}
