package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/brightpath/brightpath-lms/internal/eventlog"
	"github.com/brightpath/brightpath-lms/internal/quiz"
)

// EventSink receives best-effort audit events. Append failures are logged
// and never affect the submission outcome.
type EventSink interface {
	Append(ctx context.Context, e eventlog.Event) error
}

const defaultGradeTimeout = 10 * time.Second

// FinalizeInput is everything the pipeline needs from the session, copied
// out under the session lock before the remote calls start.
type FinalizeInput struct {
	Quiz        quiz.Quiz
	User        Identity
	StartedAt   time.Time
	SubmittedAt time.Time
	Answers     map[string]string
	Forced      bool
	EndReason   string
	Violations  int
}

// Outcome is how one pipeline run resolved. Conflict means a concurrent
// attempt won the creation race and Attempt holds its record; Err means the
// attempt row could not be created at all. A nil Err with a nil score on the
// attempt means submitted with grading still pending.
type Outcome struct {
	Attempt  quiz.Attempt
	Conflict bool
	Err      error
}

// Pipeline persists a finished attempt exactly once and triggers grading.
// It is invoked by whichever trigger won the session's submit transition.
type Pipeline struct {
	backend Backend
	events  EventSink // optional
	newID   func() string
	// gradeTimeout bounds the grading invocation; on expiry the attempt
	// stays submitted with the score pending.
	gradeTimeout time.Duration
}

func NewPipeline(backend Backend, events EventSink) *Pipeline {
	return &Pipeline{
		backend:      backend,
		events:       events,
		newID:        uuid.NewString,
		gradeTimeout: defaultGradeTimeout,
	}
}

// Finalize runs the three pipeline steps.
//
//  1. Guarded attempt creation. Failure here is fatal for the session; a
//     conflict instead re-fetches the attempt that won the race.
//  2. Per-answer persistence. Partial failure degrades those answers to
//     blank; the attempt row is already authoritative.
//  3. Grading. Failure or timeout leaves the attempt submitted, score
//     pending; the student's work is never rolled back past step 1.
func (p *Pipeline) Finalize(ctx context.Context, in FinalizeInput) Outcome {
	a := quiz.Attempt{
		ID:          p.newID(),
		QuizID:      in.Quiz.ID,
		UserID:      in.User.ID,
		Status:      quiz.StatusSubmitted,
		StartedAt:   in.StartedAt.Unix(),
		SubmittedAt: in.SubmittedAt.Unix(),
		Forced:      in.Forced,
		EndReason:   in.EndReason,
		Violations:  in.Violations,
	}

	if err := p.backend.CreateAttempt(ctx, a); err != nil {
		if errors.Is(err, quiz.ErrAttemptExists) {
			existing, ferr := p.backend.FindAttempt(ctx, in.Quiz.ID, in.User.ID)
			if ferr != nil {
				log.Printf("session: attempt conflict for quiz=%s user=%s but re-fetch failed: %v",
					in.Quiz.ID, in.User.ID, ferr)
			}
			return Outcome{Attempt: existing, Conflict: true}
		}
		// No automatic retry: the failure may have been a delayed success,
		// and retrying blind risks a duplicate attempt.
		return Outcome{Err: fmt.Errorf("create attempt: %w", err)}
	}

	a.Answers = map[string]string{}
	for _, q := range in.Quiz.Questions {
		ans, ok := in.Answers[q.ID]
		if !ok {
			continue
		}
		if err := p.backend.SaveAnswer(ctx, a.ID, q.ID, ans); err != nil {
			// Accepted degraded outcome: this answer grades as blank.
			log.Printf("session: answer persist failed attempt=%s question=%s: %v", a.ID, q.ID, err)
			continue
		}
		a.Answers[q.ID] = ans
	}

	p.record(ctx, eventlog.TypeAttemptSubmitted, a.ID, map[string]any{
		"quiz_id": a.QuizID, "user_id": a.UserID, "end_reason": a.EndReason,
	})
	if a.Forced {
		p.record(ctx, eventlog.TypeAttemptForced, a.ID, map[string]any{
			"end_reason": a.EndReason, "violations": a.Violations,
		})
	}

	gctx, cancel := context.WithTimeout(ctx, p.gradeTimeout)
	defer cancel()
	score, err := p.backend.GradeAttempt(gctx, a.ID)
	if err != nil {
		// Non-fatal: the work is recorded, the score stays pending.
		log.Printf("session: grading failed attempt=%s: %v", a.ID, err)
		return Outcome{Attempt: a}
	}
	a.Score = &score
	a.Status = quiz.StatusGraded
	return Outcome{Attempt: a}
}

func (p *Pipeline) record(ctx context.Context, typ, key string, data map[string]any) {
	if p.events == nil {
		return
	}
	e := eventlog.Event{Type: typ, Key: key, DataJSON: eventlog.Marshal(data)}
	if err := p.events.Append(ctx, e); err != nil {
		log.Printf("session: event append failed type=%s key=%s: %v", typ, key, err)
	}
}
