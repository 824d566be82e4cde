package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brightpath/brightpath-lms/internal/eventlog"
	"github.com/brightpath/brightpath-lms/internal/quiz"
	"github.com/brightpath/brightpath-lms/internal/session"
)

func finalizeInput(q quiz.Quiz, answers map[string]string) session.FinalizeInput {
	started := time.Unix(1_700_000_000, 0)
	return session.FinalizeInput{
		Quiz:        q,
		User:        session.Identity{ID: "stu-1", Role: "student"},
		StartedAt:   started,
		SubmittedAt: started.Add(time.Minute),
		Answers:     answers,
		EndReason:   quiz.EndReasonStudent,
	}
}

func TestPipelineHappyPath(t *testing.T) {
	be := newFakeBackend()
	be.gradeScore = 100
	sink := &fakeSink{}
	q := twoQuestionQuiz(0, 0)

	out := session.NewPipeline(be, sink).Finalize(context.Background(),
		finalizeInput(q, map[string]string{"q1": "a", "q2": "b"}))

	if out.Err != nil || out.Conflict {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.Attempt.Status != quiz.StatusGraded || out.Attempt.Score == nil || *out.Attempt.Score != 100 {
		t.Fatalf("expected graded attempt with score 100, got %+v", out.Attempt)
	}
	if be.createCalls != 1 || be.saveCalls != 2 || be.gradeCalls != 1 {
		t.Fatalf("call counts create=%d save=%d grade=%d", be.createCalls, be.saveCalls, be.gradeCalls)
	}
	if sink.countType(eventlog.TypeAttemptSubmitted) != 1 {
		t.Fatalf("expected one submitted event")
	}
}

func TestPipelineConflictRefetchesWinner(t *testing.T) {
	be := newFakeBackend()
	winner := quiz.Attempt{ID: "attempt-w", QuizID: "quiz-1", UserID: "stu-1", Status: quiz.StatusSubmitted}
	be.conflictWith = &winner

	out := session.NewPipeline(be, nil).Finalize(context.Background(),
		finalizeInput(twoQuestionQuiz(0, 0), nil))

	if !out.Conflict {
		t.Fatalf("expected conflict outcome")
	}
	if out.Attempt.ID != "attempt-w" {
		t.Fatalf("expected the winning attempt, got %s", out.Attempt.ID)
	}
	if be.saveCalls != 0 || be.gradeCalls != 0 {
		t.Fatalf("steps after creation must not run on conflict: save=%d grade=%d", be.saveCalls, be.gradeCalls)
	}
}

func TestPipelineCreateFailureStopsEverything(t *testing.T) {
	be := newFakeBackend()
	be.createErr = errors.New("backend down")
	sink := &fakeSink{}

	out := session.NewPipeline(be, sink).Finalize(context.Background(),
		finalizeInput(twoQuestionQuiz(0, 0), map[string]string{"q1": "a"}))

	if out.Err == nil {
		t.Fatalf("expected error outcome")
	}
	if be.createCalls != 1 {
		t.Fatalf("expected a single creation try, got %d", be.createCalls)
	}
	if be.saveCalls != 0 || be.gradeCalls != 0 || len(sink.events) != 0 {
		t.Fatalf("nothing past creation may run: save=%d grade=%d events=%d",
			be.saveCalls, be.gradeCalls, len(sink.events))
	}
}

func TestPipelinePartialAnswerFailure(t *testing.T) {
	be := newFakeBackend()
	be.saveErrFor = map[string]error{"q1": errors.New("timeout")}
	be.gradeScore = 50

	out := session.NewPipeline(be, nil).Finalize(context.Background(),
		finalizeInput(twoQuestionQuiz(0, 0), map[string]string{"q1": "a", "q2": "b"}))

	if out.Err != nil {
		t.Fatalf("partial answer failure must not fail the pipeline: %v", out.Err)
	}
	if _, ok := out.Attempt.Answers["q1"]; ok {
		t.Fatalf("failed answer must not appear on the attempt")
	}
	if _, ok := out.Attempt.Answers["q2"]; !ok {
		t.Fatalf("surviving answer missing from the attempt")
	}
	if be.gradeCalls != 1 {
		t.Fatalf("grading must still run, got %d calls", be.gradeCalls)
	}
}

func TestPipelineForcedSubmissionEmitsForcedEvent(t *testing.T) {
	be := newFakeBackend()
	sink := &fakeSink{}
	in := finalizeInput(twoQuestionQuiz(0, 0), nil)
	in.Forced = true
	in.EndReason = quiz.EndReasonViolation
	in.Violations = 3

	out := session.NewPipeline(be, sink).Finalize(context.Background(), in)
	if out.Err != nil {
		t.Fatalf("finalize: %v", out.Err)
	}
	if !out.Attempt.Forced || out.Attempt.Violations != 3 {
		t.Fatalf("expected forced attempt with violations, got %+v", out.Attempt)
	}
	if sink.countType(eventlog.TypeAttemptForced) != 1 {
		t.Fatalf("expected one forced event")
	}
}
