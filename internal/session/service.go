package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"quiz-session-service/internal/domain"
)

// QuizProvider fetches the published quiz definition a session runs
// against (Postgres, the upstream admin API, or a static map).
type QuizProvider interface {
	FetchBySlug(ctx context.Context, slug string) (domain.Quiz, error)
}

// SubmissionSink receives the accepted response exactly once per session.
type SubmissionSink interface {
	Submit(ctx context.Context, slug string, sub domain.Submission) error
}

// Options tunes session timing. Zero values fall back to production
// defaults; tests shrink the intervals and inject a clock.
type Options struct {
	// AutoAdvanceDelay is the debounce window between answering a single
	// choice and the automatic forward transition.
	AutoAdvanceDelay time.Duration
	// TickInterval is the countdown emission period.
	TickInterval time.Duration
	// Clock overrides time.Now.
	Clock func() time.Time
}

const defaultAdvanceDelay = 300 * time.Millisecond

func (o Options) advanceDelay() time.Duration {
	if o.AutoAdvanceDelay <= 0 {
		return defaultAdvanceDelay
	}
	return o.AutoAdvanceDelay
}

func (o Options) tickInterval() time.Duration {
	if o.TickInterval <= 0 {
		return time.Second
	}
	return o.TickInterval
}

func (o Options) clock() func() time.Time {
	if o.Clock == nil {
		return time.Now
	}
	return o.Clock
}

// Service starts respondent sessions: it consults the duplicate-
// submission guard before touching the provider, validates the fetched
// definition, and hands back a navigator already in its initial state.
type Service struct {
	provider QuizProvider
	sink     SubmissionSink
	guard    Guard
	opts     Options
}

// NewService wires the session use case from its collaborators.
func NewService(provider QuizProvider, sink SubmissionSink, markers MarkerStore, opts Options) *Service {
	return &Service{
		provider: provider,
		sink:     sink,
		guard:    NewGuard(markers),
		opts:     opts,
	}
}

// Start creates the session for one respondent. The returned navigator is
// never nil: guard hits and load failures come back as a navigator
// already in its terminal stage, alongside the causing error.
func (s *Service) Start(ctx context.Context, slug, clientKey string) (*Navigator, error) {
	key := MarkerKey(slug, clientKey)
	nav := newNavigator(slug, key, s.sink, s.guard, s.opts)

	if s.guard.HasSubmitted(ctx, key) {
		nav.fail(StageAlreadySubmitted, "You have already taken this quiz. Each respondent may submit only once.")
		return nav, domain.ErrAlreadySubmitted
	}

	quiz, err := s.provider.FetchBySlug(ctx, slug)
	if err != nil {
		nav.fail(StageLoadError, loadErrorMessage(err))
		return nav, fmt.Errorf("fetch quiz %q: %w", slug, err)
	}
	if quiz.Status == domain.StatusClosed {
		nav.fail(StageLoadError, loadErrorMessage(domain.ErrQuizClosed))
		return nav, domain.ErrQuizClosed
	}
	if quiz.Status != domain.StatusPublished {
		nav.fail(StageLoadError, loadErrorMessage(domain.ErrQuizNotFound))
		return nav, domain.ErrQuizNotFound
	}
	if err := quiz.Runnable(); err != nil {
		nav.fail(StageLoadError, loadErrorMessage(err))
		return nav, fmt.Errorf("quiz %q not runnable: %w", slug, err)
	}

	// display sequence comes from the order field, never from input order
	sort.SliceStable(quiz.Questions, func(i, j int) bool {
		return quiz.Questions[i].Order < quiz.Questions[j].Order
	})

	nav.begin(quiz)
	return nav, nil
}

func loadErrorMessage(err error) string {
	if errors.Is(err, domain.ErrQuizClosed) {
		return "This quiz is closed and no longer accepts responses."
	}
	return "Quiz not found or no longer available."
}

// begin enters the initial running state: the info step for identified
// quizzes, otherwise question 0 with the countdown started immediately.
func (n *Navigator) begin(quiz domain.Quiz) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.quiz = quiz
	if quiz.Anonymous {
		n.stage = StageQuestion
		n.step = 0
		n.startTimingLocked()
	} else {
		n.stage = StageInfo
		n.step = infoStep
	}
}

// fail puts a fresh navigator straight into a terminal stage.
func (n *Navigator) fail(stage Stage, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stage = stage
	n.message = message
}
