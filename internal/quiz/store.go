package quiz

import (
	"context"
	"errors"
)

var (
	ErrQuizNotFound    = errors.New("quiz not found")
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptExists signals the at-most-one-attempt guard: an attempt row
	// for this (quiz, user) pair already exists. Creation must fail loudly on
	// conflict rather than overwrite.
	ErrAttemptExists = errors.New("attempt already exists")
)

type ListOpts struct {
	Q      string
	Limit  int
	Offset int
}

type AttemptListOpts struct {
	QuizID string
	UserID string
	Status string
	Limit  int
	Offset int
}

type Store interface {
	PutQuiz(ctx context.Context, q Quiz) error
	// GetQuiz is student-safe: answer keys are stripped.
	GetQuiz(ctx context.Context, id string) (Quiz, error)
	// GetQuizWithKeys returns the full quiz, for grading and teacher views.
	GetQuizWithKeys(ctx context.Context, id string) (Quiz, error)
	ListQuizzes(ctx context.Context, opts ListOpts) ([]QuizSummary, error)

	// FindAttempt returns ErrAttemptNotFound when the (quiz, user) pair has
	// no attempt. At most one can exist.
	FindAttempt(ctx context.Context, quizID, userID string) (Attempt, error)
	CreateAttempt(ctx context.Context, a Attempt) error
	SaveAnswer(ctx context.Context, attemptID, questionID, answer string) error
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)

	// GradeAttempt scores the persisted answers against the quiz's answer
	// keys and records the resulting percentage on the attempt.
	GradeAttempt(ctx context.Context, attemptID string) (float64, error)
}
