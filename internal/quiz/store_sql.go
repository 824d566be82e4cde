package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brightpath/brightpath-lms/internal/grading"
)

type SQLStore struct {
	db     *sql.DB
	grader grading.Grader
}

func NewSQLStore(db *sql.DB, grader grading.Grader) *SQLStore {
	return &SQLStore{db: db, grader: grader}
}

func (s *SQLStore) PutQuiz(ctx context.Context, q Quiz) error {
	qj, err := json.Marshal(q.Questions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO quizzes (id,title,time_limit_sec,due_at,questions_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, time_limit_sec=EXCLUDED.time_limit_sec,
			due_at=EXCLUDED.due_at, questions_json=EXCLUDED.questions_json`,
		q.ID, q.Title, q.TimeLimitSec, q.DueAt, string(qj), time.Now().Unix())
	return err
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	q, err := s.GetQuizWithKeys(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	// Strip answer keys when serving to students.
	for i := range q.Questions {
		q.Questions[i].AnswerKey = nil
	}
	return q, nil
}

func (s *SQLStore) GetQuizWithKeys(ctx context.Context, id string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,title,time_limit_sec,due_at,questions_json,created_at FROM quizzes WHERE id=$1`, id)
	var q Quiz
	var qjson string
	if err := row.Scan(&q.ID, &q.Title, &q.TimeLimitSec, &q.DueAt, &qjson, &q.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrQuizNotFound
		}
		return Quiz{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &q.Questions); err != nil {
		return Quiz{}, err
	}
	return q, nil
}

func (s *SQLStore) ListQuizzes(ctx context.Context, opts ListOpts) ([]QuizSummary, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args := []any{}
	where := ""
	if q := strings.TrimSpace(opts.Q); q != "" {
		where = `WHERE title LIKE $1`
		args = append(args, "%"+q+"%")
	}
	args = append(args, limit, opts.Offset)
	query := fmt.Sprintf(`SELECT id,title,time_limit_sec,due_at,questions_json,created_at FROM quizzes %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []QuizSummary{}
	for rows.Next() {
		var sum QuizSummary
		var qjson string
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.TimeLimitSec, &sum.DueAt, &qjson, &sum.CreatedAt); err != nil {
			return nil, err
		}
		var questions []Question
		if err := json.Unmarshal([]byte(qjson), &questions); err == nil {
			sum.QuestionCount = len(questions)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLStore) FindAttempt(ctx context.Context, quizID, userID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,quiz_id,user_id,status,score,started_at,submitted_at,forced,end_reason,violations
		 FROM attempts WHERE quiz_id=$1 AND user_id=$2`, quizID, userID)
	return s.scanAttempt(ctx, row)
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,quiz_id,user_id,status,score,started_at,submitted_at,forced,end_reason,violations
		 FROM attempts WHERE id=$1`, id)
	return s.scanAttempt(ctx, row)
}

func (s *SQLStore) scanAttempt(ctx context.Context, row *sql.Row) (Attempt, error) {
	var a Attempt
	var score sql.NullFloat64
	var endReason sql.NullString
	if err := row.Scan(&a.ID, &a.QuizID, &a.UserID, &a.Status, &score, &a.StartedAt, &a.SubmittedAt,
		&a.Forced, &endReason, &a.Violations); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrAttemptNotFound
		}
		return Attempt{}, err
	}
	if score.Valid {
		v := score.Float64
		a.Score = &v
	}
	a.EndReason = endReason.String
	answers, err := s.loadAnswers(ctx, a.ID)
	if err != nil {
		return Attempt{}, err
	}
	a.Answers = answers
	return a, nil
}

func (s *SQLStore) loadAnswers(ctx context.Context, attemptID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id,answer FROM answers WHERE attempt_id=$1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var qid, ans string
		if err := rows.Scan(&qid, &ans); err != nil {
			return nil, err
		}
		out[qid] = ans
	}
	return out, rows.Err()
}

// CreateAttempt enforces at-most-one attempt per (quiz, user): a pre-check
// plus the UNIQUE(quiz_id,user_id) index. Either layer alone is not enough —
// the caller holds no lock between check and insert.
func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt) error {
	if _, err := s.FindAttempt(ctx, a.QuizID, a.UserID); err == nil {
		return ErrAttemptExists
	} else if !errors.Is(err, ErrAttemptNotFound) {
		return err
	}
	var score any
	if a.Score != nil {
		score = *a.Score
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO attempts
		(id,quiz_id,user_id,status,score,started_at,submitted_at,forced,end_reason,violations)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.QuizID, a.UserID, a.Status, score, a.StartedAt, a.SubmittedAt, a.Forced, a.EndReason, a.Violations)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAttemptExists
		}
		return err
	}
	return nil
}

func (s *SQLStore) SaveAnswer(ctx context.Context, attemptID, questionID, answer string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO answers (attempt_id,question_id,answer)
		VALUES ($1,$2,$3)
		ON CONFLICT (attempt_id,question_id) DO UPDATE SET answer=EXCLUDED.answer`,
		attemptID, questionID, answer)
	return err
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	where := []string{}
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if opts.QuizID != "" {
		add("quiz_id=$%d", opts.QuizID)
	}
	if opts.UserID != "" {
		add("user_id=$%d", opts.UserID)
	}
	if opts.Status != "" {
		add("status=$%d", opts.Status)
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit, opts.Offset)
	query := fmt.Sprintf(`SELECT id,quiz_id,user_id,status,score,started_at,submitted_at,forced,end_reason,violations
		FROM attempts %s ORDER BY submitted_at DESC LIMIT $%d OFFSET $%d`, clause, len(args)-1, len(args))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		var a Attempt
		var score sql.NullFloat64
		var endReason sql.NullString
		if err := rows.Scan(&a.ID, &a.QuizID, &a.UserID, &a.Status, &score, &a.StartedAt, &a.SubmittedAt,
			&a.Forced, &endReason, &a.Violations); err != nil {
			return nil, err
		}
		if score.Valid {
			v := score.Float64
			a.Score = &v
		}
		a.EndReason = endReason.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// GradeAttempt scores the persisted answer rows against the quiz's answer
// keys. Answers that were never persisted grade as blank.
func (s *SQLStore) GradeAttempt(ctx context.Context, attemptID string) (float64, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return 0, err
	}
	if a.Status == StatusGraded && a.Score != nil {
		return *a.Score, nil
	}
	q, err := s.GetQuizWithKeys(ctx, a.QuizID)
	if err != nil {
		return 0, err
	}
	score := scorePercent(ctx, s.grader, q.Questions, a.Answers)
	_, err = s.db.ExecContext(ctx, `UPDATE attempts SET status=$1, score=$2 WHERE id=$3`,
		StatusGraded, score, attemptID)
	if err != nil {
		return 0, err
	}
	return score, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // sqlite
		strings.Contains(msg, "duplicate key") // postgres
}
