package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/brightpath/brightpath-lms/internal/quiz"
)

// State is the lifecycle of one student's quiz attempt. Loading resolves to
// one of four states; only active can reach submitting, and submitting
// resolves to submitted or submit_error. Everything except active and
// submitting is terminal.
type State string

const (
	StateLoading          State = "loading"
	StateNotFound         State = "not_found"
	StateAlreadySubmitted State = "already_submitted"
	StateExpired          State = "expired"
	StateActive           State = "active"
	StateSubmitting       State = "submitting"
	StateSubmitted        State = "submitted"
	StateSubmitError      State = "submit_error"
)

// Terminal reports whether the session can accept no further mutation.
func (s State) Terminal() bool {
	switch s {
	case StateNotFound, StateAlreadySubmitted, StateExpired, StateSubmitted, StateSubmitError:
		return true
	}
	return false
}

// Trigger identifies which event source requested submission. Only the first
// trigger to fire is honored.
type Trigger string

const (
	TriggerStudent   Trigger = quiz.EndReasonStudent
	TriggerTimeout   Trigger = quiz.EndReasonTimeout
	TriggerViolation Trigger = quiz.EndReasonViolation
)

// Identity is the current user, injected once at session construction.
type Identity struct {
	ID   string
	Role string
}

// Clock supplies wall-clock time; injectable for tests.
type Clock func() time.Time

// Backend is the external collaborator surface the session consumes. All
// calls are remote and must not be retried automatically on failure.
type Backend interface {
	GetQuiz(ctx context.Context, id string) (quiz.Quiz, error)
	FindAttempt(ctx context.Context, quizID, userID string) (quiz.Attempt, error)
	CreateAttempt(ctx context.Context, a quiz.Attempt) error
	SaveAnswer(ctx context.Context, attemptID, questionID, answer string) error
	GradeAttempt(ctx context.Context, attemptID string) (float64, error)
}

var (
	ErrNotActive       = errors.New("session is not active")
	ErrUnknownQuestion = errors.New("unknown question")
	ErrBadIndex        = errors.New("question index out of range")
)

// Session holds the in-memory state of one in-progress attempt. It is owned
// by a single quiz-taking view; all mutation goes through its methods, and
// the active -> submitting transition fires at most once no matter how many
// triggers race for it.
type Session struct {
	mu sync.Mutex

	state     State
	quiz      quiz.Quiz
	user      Identity
	startedAt time.Time
	deadline  time.Time // zero when untimed
	index     int
	answers   map[string]string
	monitor   Monitor
	trigger   Trigger
	forced    bool

	// attempt is populated once the session reaches a terminal state backed
	// by a durable record (already_submitted or submitted).
	attempt   quiz.Attempt
	submitErr error

	now      Clock
	pipeline *Pipeline
	cancel   context.CancelFunc // tears down the countdown goroutine
}

// terminalSession builds a session that resolved straight out of loading.
func terminalSession(state State, q quiz.Quiz, user Identity, now Clock) *Session {
	return &Session{state: state, quiz: q, user: user, now: now}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) User() Identity { return s.user }

// Answer records the student's choice for a question. Rejected outside the
// active state: terminal sessions accept no further answer mutation.
func (s *Session) Answer(questionID, choice string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return ErrNotActive
	}
	found := false
	for _, q := range s.quiz.Questions {
		if q.ID == questionID {
			found = true
			break
		}
	}
	if !found {
		return ErrUnknownQuestion
	}
	s.answers[questionID] = choice
	return nil
}

// Navigate moves the current question index.
func (s *Session) Navigate(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return ErrNotActive
	}
	if index < 0 || index >= len(s.quiz.Questions) {
		return ErrBadIndex
	}
	s.index = index
	return nil
}

// HideOutcome reports how the integrity monitor handled one hide event.
type HideOutcome struct {
	Violations int  `json:"violations"`
	Warned     bool `json:"warned"`
	Forced     bool `json:"forced"`
}

// ReportHide feeds one tab-hide/focus-loss event to the integrity monitor.
// Strikes one and two warn; strike three forces submission. Events arriving
// after the session left active are ignored.
func (s *Session) ReportHide(ctx context.Context) HideOutcome {
	s.mu.Lock()
	if s.state != StateActive {
		n := s.monitor.Count()
		s.mu.Unlock()
		return HideOutcome{Violations: n}
	}
	n, esc := s.monitor.Record()
	s.mu.Unlock()

	if esc == EscalateForce {
		s.Submit(ctx, TriggerViolation)
		return HideOutcome{Violations: n, Forced: true}
	}
	return HideOutcome{Violations: n, Warned: true}
}

// Submit requests the single active -> submitting transition and, if this
// trigger won, runs the submission pipeline exactly once. Losing triggers
// observe the state already changed and return it unchanged.
func (s *Session) Submit(ctx context.Context, trigger Trigger) State {
	s.mu.Lock()
	if s.state != StateActive {
		st := s.state
		s.mu.Unlock()
		return st
	}
	s.state = StateSubmitting
	s.trigger = trigger
	s.forced = trigger != TriggerStudent
	answers := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	started := s.startedAt
	violations := s.monitor.Count()
	s.mu.Unlock()

	s.stopCountdown()

	out := s.pipeline.Finalize(ctx, FinalizeInput{
		Quiz:        s.quiz,
		User:        s.user,
		StartedAt:   started,
		SubmittedAt: s.now(),
		Answers:     answers,
		Forced:      trigger != TriggerStudent,
		EndReason:   string(trigger),
		Violations:  violations,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case out.Conflict:
		// A concurrent attempt won the race; its record is authoritative.
		s.state = StateAlreadySubmitted
		s.attempt = out.Attempt
	case out.Err != nil:
		s.state = StateSubmitError
		s.submitErr = out.Err
	default:
		s.state = StateSubmitted
		s.attempt = out.Attempt
	}
	return s.state
}

// expire is the countdown's submit path.
func (s *Session) expire() {
	s.Submit(context.Background(), TriggerTimeout)
}

func (s *Session) stopCountdown() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Discard tears down the session without submitting anything. Nothing was
// persisted, so there is nothing to roll back; the countdown and any pending
// monitor state simply stop existing.
func (s *Session) Discard() {
	s.stopCountdown()
}

// Remaining is the time left until the deadline, clamped at zero. It is a
// pure function of the deadline and the clock, never a decremented counter.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	deadline := s.deadline
	s.mu.Unlock()
	if deadline.IsZero() {
		return 0
	}
	return remaining(deadline, s.now())
}

// View is the JSON snapshot served to the quiz-taking screen. Every terminal
// state renders distinctly so the UI never implies the student can still
// answer when the session cannot accept mutation.
type View struct {
	State         State          `json:"state"`
	QuizID        string         `json:"quiz_id"`
	Title         string         `json:"title,omitempty"`
	QuestionCount int            `json:"question_count,omitempty"`
	QuestionIndex int            `json:"question_index"`
	Timed         bool           `json:"timed"`
	RemainingSec  int            `json:"remaining_sec"`
	Violations    int            `json:"violations,omitempty"`
	Forced        bool           `json:"forced,omitempty"`
	EndReason     string         `json:"end_reason,omitempty"`
	Attempt       *quiz.Attempt  `json:"attempt,omitempty"`
	// Answers are echoed back on submit_error so no work is visibly lost.
	Answers map[string]string `json:"answers,omitempty"`
	Error   string            `json:"error,omitempty"`
}

func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		State:         s.state,
		QuizID:        s.quiz.ID,
		Title:         s.quiz.Title,
		QuestionCount: len(s.quiz.Questions),
		QuestionIndex: s.index,
		Violations:    s.monitor.Count(),
		Forced:        s.forced,
		EndReason:     string(s.trigger),
	}
	if !s.deadline.IsZero() {
		v.Timed = true
		v.RemainingSec = int(remaining(s.deadline, s.now()) / time.Second)
	}
	switch s.state {
	case StateAlreadySubmitted, StateSubmitted:
		a := s.attempt
		v.Attempt = &a
	case StateSubmitError:
		v.Answers = make(map[string]string, len(s.answers))
		for k, val := range s.answers {
			v.Answers[k] = val
		}
		if s.submitErr != nil {
			v.Error = s.submitErr.Error()
		}
	}
	return v
}
