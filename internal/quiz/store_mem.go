package quiz

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/brightpath/brightpath-lms/internal/grading"
)

// MemStore is an in-memory Store for tests and offline development.
type MemStore struct {
	mu       sync.RWMutex
	quizzes  map[string]Quiz
	attempts map[string]Attempt           // attemptID -> attempt
	byOwner  map[string]string            // quizID|userID -> attemptID
	answers  map[string]map[string]string // attemptID -> questionID -> answer
	grader   grading.Grader
}

func NewMemStore(grader grading.Grader) *MemStore {
	return &MemStore{
		quizzes:  map[string]Quiz{},
		attempts: map[string]Attempt{},
		byOwner:  map[string]string{},
		answers:  map[string]map[string]string{},
		grader:   grader,
	}
}

func ownerKey(quizID, userID string) string { return quizID + "|" + userID }

func (m *MemStore) PutQuiz(_ context.Context, q Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[q.ID] = q
	return nil
}

func (m *MemStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	q, err := m.GetQuizWithKeys(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	questions := make([]Question, len(q.Questions))
	copy(questions, q.Questions)
	for i := range questions {
		questions[i].AnswerKey = nil
	}
	q.Questions = questions
	return q, nil
}

func (m *MemStore) GetQuizWithKeys(_ context.Context, id string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, ErrQuizNotFound
	}
	return q, nil
}

func (m *MemStore) ListQuizzes(_ context.Context, opts ListOpts) ([]QuizSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []QuizSummary{}
	for _, q := range m.quizzes {
		if opts.Q != "" && !strings.Contains(strings.ToLower(q.Title), strings.ToLower(opts.Q)) {
			continue
		}
		out = append(out, QuizSummary{
			ID: q.ID, Title: q.Title, TimeLimitSec: q.TimeLimitSec,
			DueAt: q.DueAt, QuestionCount: len(q.Questions), CreatedAt: q.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

func (m *MemStore) FindAttempt(_ context.Context, quizID, userID string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byOwner[ownerKey(quizID, userID)]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	return m.attemptLocked(id)
}

func (m *MemStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attemptLocked(id)
}

func (m *MemStore) attemptLocked(id string) (Attempt, error) {
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	answers := map[string]string{}
	for k, v := range m.answers[id] {
		answers[k] = v
	}
	a.Answers = answers
	return a, nil
}

func (m *MemStore) CreateAttempt(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ownerKey(a.QuizID, a.UserID)
	if _, exists := m.byOwner[key]; exists {
		return ErrAttemptExists
	}
	m.byOwner[key] = a.ID
	a.Answers = nil
	m.attempts[a.ID] = a
	return nil
}

func (m *MemStore) SaveAnswer(_ context.Context, attemptID, questionID, answer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attempts[attemptID]; !ok {
		return ErrAttemptNotFound
	}
	if m.answers[attemptID] == nil {
		m.answers[attemptID] = map[string]string{}
	}
	m.answers[attemptID][questionID] = answer
	return nil
}

func (m *MemStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Attempt{}
	for _, a := range m.attempts {
		if opts.QuizID != "" && a.QuizID != opts.QuizID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt > out[j].SubmittedAt })
	return out, nil
}

func (m *MemStore) GradeAttempt(ctx context.Context, attemptID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return 0, ErrAttemptNotFound
	}
	if a.Status == StatusGraded && a.Score != nil {
		return *a.Score, nil
	}
	q, ok := m.quizzes[a.QuizID]
	if !ok {
		return 0, ErrQuizNotFound
	}
	score := scorePercent(ctx, m.grader, q.Questions, m.answers[attemptID])
	a.Score = &score
	a.Status = StatusGraded
	m.attempts[attemptID] = a
	return score, nil
}
