package memory

import (
	"context"
	"sync"

	"quiz-session-service/internal/domain"
)

// RecordingSink collects submissions in memory. It doubles as the test
// sink: FailNext makes the next call fail so retry paths can be
// exercised.
type RecordingSink struct {
	mu       sync.Mutex
	failNext error

	Submissions []RecordedSubmission
}

// RecordedSubmission pairs a submission with the quiz it was sent for.
type RecordedSubmission struct {
	Slug       string
	Submission domain.Submission
}

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// FailNext makes the next Submit call return err.
func (s *RecordingSink) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

func (s *RecordingSink) Submit(_ context.Context, slug string, sub domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.Submissions = append(s.Submissions, RecordedSubmission{Slug: slug, Submission: sub})
	return nil
}

// Count returns how many submissions were accepted.
func (s *RecordingSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Submissions)
}

// Last returns the most recently accepted submission.
func (s *RecordingSink) Last() (RecordedSubmission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Submissions) == 0 {
		return RecordedSubmission{}, false
	}
	return s.Submissions[len(s.Submissions)-1], true
}
