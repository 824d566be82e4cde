package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/brightpath/brightpath-lms/internal/eventlog"
	"github.com/brightpath/brightpath-lms/internal/quiz"
)

const defaultTick = time.Second

// Engine owns the live attempt sessions, at most one per (quiz, user). It
// performs the loading resolution, starts the countdown for timed quizzes
// and tears sessions down when the student navigates away.
type Engine struct {
	mu       sync.Mutex
	sessions map[string]*Session

	backend Backend
	events  EventSink
	now     Clock
	tick    time.Duration
	// threshold is the integrity monitor strike limit.
	threshold int
}

type EngineOption func(*Engine)

// WithClock injects a fake clock for tests.
func WithClock(now Clock) EngineOption { return func(e *Engine) { e.now = now } }

// WithTick overrides the one-second countdown tick.
func WithTick(d time.Duration) EngineOption { return func(e *Engine) { e.tick = d } }

// WithViolationThreshold overrides the three-strike default.
func WithViolationThreshold(n int) EngineOption { return func(e *Engine) { e.threshold = n } }

func NewEngine(backend Backend, events EventSink, opts ...EngineOption) *Engine {
	e := &Engine{
		sessions:  map[string]*Session{},
		backend:   backend,
		events:    events,
		now:       time.Now,
		tick:      defaultTick,
		threshold: DefaultViolationThreshold,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func sessionKey(quizID, userID string) string { return quizID + "|" + userID }

// Open resolves the loading state for one student opening a quiz:
//
//	quiz missing            -> not_found
//	prior attempt exists    -> already_submitted (its record is displayed)
//	due date in the past    -> expired, even if never started
//	otherwise               -> active, countdown running if the quiz is timed
//
// A remote load failure returns an error; the caller surfaces it with no
// retry loop.
func (e *Engine) Open(ctx context.Context, quizID string, user Identity) (*Session, error) {
	e.mu.Lock()
	if s, ok := e.sessions[sessionKey(quizID, user.ID)]; ok {
		e.mu.Unlock()
		return s, nil
	}
	e.mu.Unlock()

	q, err := e.backend.GetQuiz(ctx, quizID)
	if errors.Is(err, quiz.ErrQuizNotFound) {
		return terminalSession(StateNotFound, quiz.Quiz{ID: quizID}, user, e.now), nil
	}
	if err != nil {
		return nil, err
	}

	prior, err := e.backend.FindAttempt(ctx, quizID, user.ID)
	if err == nil {
		s := terminalSession(StateAlreadySubmitted, q, user, e.now)
		s.attempt = prior
		return s, nil
	}
	if !errors.Is(err, quiz.ErrAttemptNotFound) {
		return nil, err
	}

	now := e.now()
	if q.DueAt > 0 && now.Unix() > q.DueAt {
		// The student may never start a new attempt past the deadline.
		return terminalSession(StateExpired, q, user, e.now), nil
	}

	s := &Session{
		state:     StateActive,
		quiz:      q,
		user:      user,
		startedAt: now,
		answers:   map[string]string{},
		monitor:   NewMonitor(e.threshold),
		now:       e.now,
		pipeline:  NewPipeline(e.backend, e.events),
	}
	if q.TimeLimitSec > 0 {
		s.deadline = now.Add(time.Duration(q.TimeLimitSec) * time.Second)
		cctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		go NewCountdown(s.deadline, e.now).Run(cctx, e.tick, s.expire)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.sessions[sessionKey(quizID, user.ID)]; ok {
		// Lost a concurrent open; keep the session that registered first.
		s.Discard()
		return existing, nil
	}
	e.sessions[sessionKey(quizID, user.ID)] = s
	return s, nil
}

// Get returns the live session for the pair, if any.
func (e *Engine) Get(quizID, userID string) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[sessionKey(quizID, userID)]
	return s, ok
}

// Leave discards the session for the pair: the countdown and visibility
// handling stop deterministically, and an unsubmitted session is simply
// forgotten (nothing durable exists yet).
func (e *Engine) Leave(ctx context.Context, quizID, userID string) {
	e.mu.Lock()
	s, ok := e.sessions[sessionKey(quizID, userID)]
	delete(e.sessions, sessionKey(quizID, userID))
	e.mu.Unlock()
	if !ok {
		return
	}
	s.Discard()
	if st := s.State(); !st.Terminal() {
		log.Printf("session: discarded unsubmitted session quiz=%s user=%s state=%s", quizID, userID, st)
	}
}

// RecordViolation appends an integrity event for teacher review. Best-effort.
func (e *Engine) RecordViolation(ctx context.Context, quizID, userID string, count int, forced bool) {
	if e.events == nil {
		return
	}
	ev := eventlog.Event{
		Type: eventlog.TypeIntegrityViolation,
		Key:  sessionKey(quizID, userID),
		DataJSON: eventlog.Marshal(map[string]any{
			"quiz_id": quizID, "user_id": userID, "count": count, "forced": forced,
		}),
	}
	if err := e.events.Append(ctx, ev); err != nil {
		log.Printf("session: violation event append failed quiz=%s user=%s: %v", quizID, userID, err)
	}
}
