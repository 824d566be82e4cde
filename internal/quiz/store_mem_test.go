package quiz

import (
	"context"
	"errors"
	"testing"

	"github.com/brightpath/brightpath-lms/internal/grading"
)

func seedStore(t *testing.T) *MemStore {
	t.Helper()
	m := NewMemStore(grading.NewDefaultGrader())
	err := m.PutQuiz(context.Background(), Quiz{
		ID:    "quiz-1",
		Title: "Photosynthesis Basics",
		Questions: []Question{
			{ID: "q1", Type: "mcq_single", Points: 1, AnswerKey: []string{"b"}},
			{ID: "q2", Type: "mcq_single", Points: 1, AnswerKey: []string{"a"}},
			{ID: "q3", Type: "short_word", Points: 2, AnswerKey: []string{"chloroplast"}},
		},
	})
	if err != nil {
		t.Fatalf("put quiz: %v", err)
	}
	return m
}

func TestGetQuizStripsAnswerKeys(t *testing.T) {
	m := seedStore(t)
	ctx := context.Background()

	q, err := m.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	for _, qu := range q.Questions {
		if qu.AnswerKey != nil {
			t.Fatalf("answer key leaked for %s", qu.ID)
		}
	}

	full, err := m.GetQuizWithKeys(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get quiz with keys: %v", err)
	}
	if len(full.Questions[0].AnswerKey) == 0 {
		t.Fatalf("keyed fetch lost the answer key")
	}
}

func TestCreateAttemptRejectsSecond(t *testing.T) {
	m := seedStore(t)
	ctx := context.Background()

	first := Attempt{ID: "a1", QuizID: "quiz-1", UserID: "stu-1", Status: StatusSubmitted}
	if err := m.CreateAttempt(ctx, first); err != nil {
		t.Fatalf("first create: %v", err)
	}
	second := Attempt{ID: "a2", QuizID: "quiz-1", UserID: "stu-1", Status: StatusSubmitted}
	if err := m.CreateAttempt(ctx, second); !errors.Is(err, ErrAttemptExists) {
		t.Fatalf("expected ErrAttemptExists, got %v", err)
	}
	// A different student is unaffected.
	third := Attempt{ID: "a3", QuizID: "quiz-1", UserID: "stu-2", Status: StatusSubmitted}
	if err := m.CreateAttempt(ctx, third); err != nil {
		t.Fatalf("other student blocked: %v", err)
	}
}

func TestGradeAttemptScoresPercent(t *testing.T) {
	m := seedStore(t)
	ctx := context.Background()

	a := Attempt{ID: "a1", QuizID: "quiz-1", UserID: "stu-1", Status: StatusSubmitted}
	if err := m.CreateAttempt(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}
	// q1 right, q2 wrong, q3 unanswered (grades blank).
	if err := m.SaveAnswer(ctx, "a1", "q1", "b"); err != nil {
		t.Fatalf("save q1: %v", err)
	}
	if err := m.SaveAnswer(ctx, "a1", "q2", "b"); err != nil {
		t.Fatalf("save q2: %v", err)
	}

	score, err := m.GradeAttempt(ctx, "a1")
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if score != 25 {
		t.Fatalf("got score %v, want 25 (1 of 4 points)", score)
	}

	got, err := m.GetAttempt(ctx, "a1")
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if got.Status != StatusGraded || got.Score == nil || *got.Score != 25 {
		t.Fatalf("attempt not graded: %+v", got)
	}
	// Regrading is idempotent.
	again, err := m.GradeAttempt(ctx, "a1")
	if err != nil || again != 25 {
		t.Fatalf("regrade: score=%v err=%v", again, err)
	}
}

func TestGradeEmptyAttemptIsZero(t *testing.T) {
	m := seedStore(t)
	ctx := context.Background()
	if err := m.CreateAttempt(ctx, Attempt{ID: "a1", QuizID: "quiz-1", UserID: "stu-1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	score, err := m.GradeAttempt(ctx, "a1")
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if score != 0 {
		t.Fatalf("empty attempt scored %v", score)
	}
}

func TestListAttemptsFilters(t *testing.T) {
	m := seedStore(t)
	ctx := context.Background()
	_ = m.PutQuiz(ctx, Quiz{ID: "quiz-2", Title: "Other"})

	seed := []Attempt{
		{ID: "a1", QuizID: "quiz-1", UserID: "stu-1", Status: StatusSubmitted, SubmittedAt: 10},
		{ID: "a2", QuizID: "quiz-1", UserID: "stu-2", Status: StatusGraded, SubmittedAt: 20},
		{ID: "a3", QuizID: "quiz-2", UserID: "stu-1", Status: StatusGraded, SubmittedAt: 30},
	}
	for _, a := range seed {
		if err := m.CreateAttempt(ctx, a); err != nil {
			t.Fatalf("create %s: %v", a.ID, err)
		}
	}

	got, err := m.ListAttempts(ctx, AttemptListOpts{QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a2" {
		t.Fatalf("quiz filter wrong: %+v", got)
	}

	got, _ = m.ListAttempts(ctx, AttemptListOpts{UserID: "stu-1"})
	if len(got) != 2 {
		t.Fatalf("user filter wrong: %+v", got)
	}

	got, _ = m.ListAttempts(ctx, AttemptListOpts{QuizID: "quiz-1", Status: StatusGraded})
	if len(got) != 1 || got[0].ID != "a2" {
		t.Fatalf("status filter wrong: %+v", got)
	}
}

func TestListQuizzesSearch(t *testing.T) {
	m := seedStore(t)
	ctx := context.Background()
	_ = m.PutQuiz(ctx, Quiz{ID: "quiz-2", Title: "Cell Division", CreatedAt: 99})

	got, err := m.ListQuizzes(ctx, ListOpts{Q: "photo"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "quiz-1" {
		t.Fatalf("search wrong: %+v", got)
	}
	if got[0].QuestionCount != 3 {
		t.Fatalf("question count wrong: %+v", got[0])
	}
}
