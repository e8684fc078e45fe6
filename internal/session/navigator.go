package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"quiz-session-service/internal/domain"
)

// Stage labels the navigator's position in the session state machine.
type Stage string

const (
	// StageInfo is the identity-collection step, present only for
	// non-anonymous quizzes.
	StageInfo Stage = "INFO"
	// StageQuestion means the respondent is on question StepIndex.
	StageQuestion Stage = "QUESTION"
	// StageSubmitting gates all other transitions while the sink call is
	// in flight.
	StageSubmitting Stage = "SUBMITTING"
	// StageSubmitted is terminal: the sink accepted the response.
	StageSubmitted Stage = "SUBMITTED"
	// StageExpired is entered when the countdown fires. The automatic
	// submission bypasses validation; if it fails, a manual retry is the
	// only transition left.
	StageExpired Stage = "EXPIRED"
	// StageAlreadySubmitted is terminal and entered before the quiz
	// definition is even fetched.
	StageAlreadySubmitted Stage = "ALREADY_SUBMITTED"
	// StageLoadError is terminal: the definition could not be loaded or
	// is not runnable.
	StageLoadError Stage = "LOAD_ERROR"
)

// Terminal reports whether the navigator accepts no further navigation
// from this stage. Expired is terminal for navigation but still allows a
// submission retry.
func (s Stage) Terminal() bool {
	switch s {
	case StageSubmitted, StageExpired, StageAlreadySubmitted, StageLoadError:
		return true
	}
	return false
}

// ErrSubmitUnavailable is returned for a manual submit issued anywhere
// but the last question.
var ErrSubmitUnavailable = errors.New("submit is only available on the last question")

const infoStep = -1

// Snapshot is the navigator's externally visible state, pushed to
// subscribers after every transition.
type Snapshot struct {
	Stage            Stage
	StepIndex        int
	TotalSteps       int
	Question         *domain.Question
	Answer           domain.AnswerValue
	Errors           map[string]string
	RemainingSeconds *int
	Result           *domain.ScoreSummary
	Message          string
}

// Navigator walks a single respondent through one quiz: it owns the
// answer store, gates transitions on validation, drives the countdown and
// the debounced auto-advance, and issues the final submission. All state
// is guarded by one mutex; timer and auto-advance callbacks re-check the
// stage under that mutex, so a callback queued before cancellation is a
// no-op if it fires late.
type Navigator struct {
	slug      string
	markerKey string
	quiz      domain.Quiz
	sink      SubmissionSink
	guard     Guard
	clock     func() time.Time

	tickInterval time.Duration
	advanceDelay time.Duration

	mu          sync.Mutex
	stage       Stage
	step        int
	answers     map[string]domain.AnswerValue
	errors      map[string]string
	name        string
	email       string
	message     string
	result      *domain.ScoreSummary
	remaining   int // last observed countdown value; -1 when untimed
	deadlinehit bool

	startedAt time.Time // set when timing starts; zero for untimed quizzes
	deadline  time.Time
	countdown *Countdown

	advance    *time.Timer
	advanceSeq int

	subscribers map[chan Snapshot]struct{}
}

func newNavigator(slug, markerKey string, sink SubmissionSink, guard Guard, opts Options) *Navigator {
	return &Navigator{
		slug:         slug,
		markerKey:    markerKey,
		sink:         sink,
		guard:        guard,
		clock:        opts.clock(),
		tickInterval: opts.tickInterval(),
		advanceDelay: opts.advanceDelay(),
		step:         infoStep,
		answers:      make(map[string]domain.AnswerValue),
		errors:       make(map[string]string),
		remaining:    -1,
		subscribers:  make(map[chan Snapshot]struct{}),
	}
}

// Quiz returns the definition the session runs against. Empty for
// sessions that never got past the guard or the provider.
func (n *Navigator) Quiz() domain.Quiz {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.quiz
}

// Snapshot returns the current externally visible state.
func (n *Navigator) Snapshot() Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.snapshotLocked()
}

// Subscribe registers for state updates. The current snapshot is
// delivered first. The caller must invoke cancel to avoid leaks.
func (n *Navigator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	n.mu.Lock()
	n.subscribers[ch] = struct{}{}
	initial := n.snapshotLocked()
	n.mu.Unlock()

	ch <- initial

	cancel := func() {
		n.mu.Lock()
		if _, ok := n.subscribers[ch]; ok {
			delete(n.subscribers, ch)
			close(ch)
		}
		n.mu.Unlock()
	}
	return ch, cancel
}

// SetIdentity records the respondent's name and email on the info step
// and clears their field errors.
func (n *Navigator) SetIdentity(name, email string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stage != StageInfo {
		return domain.ErrSessionFinished
	}
	n.name = name
	n.email = email
	delete(n.errors, FieldRespondentName)
	delete(n.errors, FieldRespondentEmail)
	n.broadcastLocked()
	return nil
}

// SetAnswer overwrites the answer for a question and clears its
// validation error. Answering the current question of an assessment with
// a single choice schedules the debounced auto-advance; a newer answer
// within the debounce window replaces the pending one.
func (n *Navigator) SetAnswer(questionID string, value domain.AnswerValue) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stage != StageQuestion {
		return domain.ErrSessionFinished
	}
	q, ok := n.questionByID(questionID)
	if !ok {
		return fmt.Errorf("unknown question %q", questionID)
	}

	n.answers[questionID] = value
	delete(n.errors, questionID)
	n.message = ""

	current := n.quiz.Questions[n.step]
	if current.ID == questionID &&
		q.Kind == domain.SingleChoice &&
		n.quiz.Kind == domain.KindAssessment &&
		n.step < len(n.quiz.Questions)-1 {
		n.scheduleAdvanceLocked()
	}
	n.broadcastLocked()
	return nil
}

// Next advances one step: out of the info step after identity validation
// (starting the countdown on the way), or to the next question after the
// current one validates.
func (n *Navigator) Next() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.stage {
	case StageInfo:
		n.validateIdentityLocked()
		if len(n.errors) > 0 {
			n.broadcastLocked()
			return nil
		}
		n.startTimingLocked()
		n.stage = StageQuestion
		n.step = 0
		n.broadcastLocked()
		return nil
	case StageQuestion:
		n.advanceQuestionLocked()
		n.broadcastLocked()
		return nil
	}
	return domain.ErrSessionFinished
}

// Back retreats one step without validation. From question 0 it returns
// to the info step only when the quiz collects identity.
func (n *Navigator) Back() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stage != StageQuestion {
		return domain.ErrSessionFinished
	}
	n.cancelAdvanceLocked()
	if n.step > 0 {
		n.step--
	} else if !n.quiz.Anonymous {
		n.stage = StageInfo
		n.step = infoStep
	}
	n.broadcastLocked()
	return nil
}

// Submit issues the final submission. Manual submits are only available
// on the last question and validate it first; a retry from the expired
// stage bypasses validation like the expiry itself did.
func (n *Navigator) Submit(ctx context.Context) error {
	n.mu.Lock()
	switch n.stage {
	case StageQuestion:
		if n.step != len(n.quiz.Questions)-1 {
			n.mu.Unlock()
			return ErrSubmitUnavailable
		}
		current := n.quiz.Questions[n.step]
		if msg, failed := Validate(current, n.answers); failed {
			n.errors[current.ID] = msg
			n.broadcastLocked()
			n.mu.Unlock()
			return nil
		}
	case StageExpired:
		// retry path, no validation
	default:
		n.mu.Unlock()
		return domain.ErrSessionFinished
	}
	return n.submitLocked(ctx)
}

// submitLocked runs the submission with the mutex held on entry. It
// releases the lock around the sink call and re-acquires it to apply the
// outcome; the SUBMITTING stage is the exclusivity gate in between.
func (n *Navigator) submitLocked(ctx context.Context) error {
	prior := n.stage
	n.cancelAdvanceLocked()
	n.stage = StageSubmitting
	n.message = ""
	payload, summary := n.buildSubmissionLocked()
	n.broadcastLocked()
	n.mu.Unlock()

	err := n.sink.Submit(ctx, n.slug, payload)

	n.mu.Lock()
	defer n.mu.Unlock()
	if err != nil {
		if n.deadlinehit {
			n.stage = StageExpired
		} else {
			n.stage = prior
		}
		n.message = "Your response could not be sent. Please try again."
		n.broadcastLocked()
		return fmt.Errorf("submit response: %w", err)
	}

	if markErr := n.guard.MarkSubmitted(ctx, n.markerKey); markErr != nil {
		// best-effort marker; the accepted submission stands either way
		log.Printf("mark submitted %s: %v", n.markerKey, markErr)
	}
	n.stopCountdownLocked()
	if n.quiz.Kind == domain.KindAssessment {
		n.result = &summary
	}
	n.stage = StageSubmitted
	n.broadcastLocked()
	return nil
}

// expire handles the countdown's single expiry signal: enter the expired
// stage and auto-submit whatever answers exist, bypassing validation. A
// signal arriving while a manual submit is in flight only records that
// the deadline passed.
func (n *Navigator) expire() {
	n.mu.Lock()
	if n.deadlinehit || n.stage.Terminal() {
		n.mu.Unlock()
		return
	}
	n.deadlinehit = true
	n.remaining = 0
	if n.stage == StageSubmitting {
		n.mu.Unlock()
		return
	}
	n.cancelAdvanceLocked()
	n.stage = StageExpired
	n.broadcastLocked()
	if err := n.submitLocked(context.Background()); err != nil {
		log.Printf("auto-submit %s: %v", n.slug, err)
	}
}

// Close stops the countdown and any pending auto-advance. Called when
// the session's view goes away.
func (n *Navigator) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelAdvanceLocked()
	n.stopCountdownLocked()
}

func (n *Navigator) advanceQuestionLocked() {
	n.cancelAdvanceLocked()
	if n.step >= len(n.quiz.Questions)-1 {
		return
	}
	current := n.quiz.Questions[n.step]
	if msg, failed := Validate(current, n.answers); failed {
		n.errors[current.ID] = msg
		return
	}
	delete(n.errors, current.ID)
	n.step++
}

func (n *Navigator) scheduleAdvanceLocked() {
	n.advanceSeq++
	seq := n.advanceSeq
	if n.advance != nil {
		n.advance.Stop()
	}
	n.advance = time.AfterFunc(n.advanceDelay, func() {
		n.autoAdvance(seq)
	})
}

func (n *Navigator) autoAdvance(seq int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	// stale or superseded callbacks are no-ops
	if seq != n.advanceSeq || n.stage != StageQuestion {
		return
	}
	n.advance = nil
	n.advanceQuestionLocked()
	n.broadcastLocked()
}

func (n *Navigator) cancelAdvanceLocked() {
	n.advanceSeq++
	if n.advance != nil {
		n.advance.Stop()
		n.advance = nil
	}
}

// startTimingLocked anchors the deadline. Once set it is never reset, so
// re-entering the first question cannot drift the remaining time.
func (n *Navigator) startTimingLocked() {
	if !n.quiz.Timed() || !n.deadline.IsZero() {
		return
	}
	now := n.clock()
	limit := time.Duration(n.quiz.TimeLimitMinutes) * time.Minute
	n.startedAt = now
	n.deadline = now.Add(limit)
	n.remaining = int(limit / time.Second)
	n.countdown = StartCountdown(n.deadline, n.clock, n.tickInterval, n.onTick, n.expire)
}

func (n *Navigator) stopCountdownLocked() {
	if n.countdown != nil {
		n.countdown.Stop()
	}
}

func (n *Navigator) onTick(remaining int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stage.Terminal() {
		return
	}
	n.remaining = remaining
	n.broadcastLocked()
}

func (n *Navigator) validateIdentityLocked() {
	if n.quiz.Anonymous {
		return
	}
	if domain.TextAnswer(n.name).Blank() {
		n.errors[FieldRespondentName] = msgNameRequired
	}
	if domain.TextAnswer(n.email).Blank() {
		n.errors[FieldRespondentEmail] = msgEmailRequired
	}
}

// buildSubmissionLocked assembles the full answer set: every question is
// present, with unanswered multi-choice defaulting to an empty selection
// and everything else to an empty string.
func (n *Navigator) buildSubmissionLocked() (domain.Submission, domain.ScoreSummary) {
	answers := make([]domain.Answer, 0, len(n.quiz.Questions))
	for _, q := range n.quiz.Questions {
		value, ok := n.answers[q.ID]
		if !ok {
			if q.Kind == domain.MultipleChoice {
				value = domain.ChoicesAnswer([]string{})
			} else {
				value = domain.TextAnswer("")
			}
		}
		answers = append(answers, domain.Answer{QuestionID: q.ID, Value: value})
	}

	sub := domain.Submission{
		Answers:        answers,
		ElapsedSeconds: n.elapsedSecondsLocked(),
	}
	if !n.quiz.Anonymous {
		sub.RespondentName = n.name
		sub.RespondentEmail = n.email
	}

	summary := Score(n.quiz.Questions, n.answers)
	if n.quiz.Kind == domain.KindAssessment {
		sub.ScorePercent = &summary.Percent
	}
	return sub, summary
}

func (n *Navigator) elapsedSecondsLocked() int {
	if n.startedAt.IsZero() {
		return 0
	}
	return int(n.clock().Sub(n.startedAt) / time.Second)
}

func (n *Navigator) questionByID(id string) (domain.Question, bool) {
	for _, q := range n.quiz.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return domain.Question{}, false
}

func (n *Navigator) snapshotLocked() Snapshot {
	snap := Snapshot{
		Stage:      n.stage,
		StepIndex:  n.step,
		TotalSteps: len(n.quiz.Questions),
		Errors:     make(map[string]string, len(n.errors)),
		Result:     n.result,
		Message:    n.message,
	}
	for k, v := range n.errors {
		snap.Errors[k] = v
	}
	if n.remaining >= 0 {
		remaining := n.remaining
		snap.RemainingSeconds = &remaining
	}
	if (n.stage == StageQuestion || n.stage == StageSubmitting || n.stage == StageExpired) &&
		n.step >= 0 && n.step < len(n.quiz.Questions) {
		q := n.quiz.Questions[n.step]
		snap.Question = &q
		snap.Answer = n.answers[q.ID]
	}
	return snap
}

func (n *Navigator) broadcastLocked() {
	snap := n.snapshotLocked()
	for ch := range n.subscribers {
		select {
		case ch <- snap:
		default:
			// drop the stale update so a slow reader never blocks a transition
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
