package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Event types appended by the attempt session engine.
const (
	TypeAttemptSubmitted   = "attempt_submitted"
	TypeAttemptForced      = "attempt_forced"
	TypeIntegrityViolation = "integrity_violation"
)

type Event struct {
	Offset    int64
	SiteID    string
	Type      string
	Key       string // natural key: attemptID or quizID|userID
	DataJSON  string
	CreatedAt int64
}

type Repo struct{ db *sql.DB }

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Append(ctx context.Context, e Event) error {
	site := e.SiteID
	if site == "" {
		site = "local"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		site, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

// Marshal renders an event payload, swallowing marshal errors into "{}" so a
// best-effort audit write never fails on payload shape.
func Marshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
