package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brightpath/brightpath-lms/internal/session"
)

// POST /quizzes/{quizID}/session — open (or resume) the student's attempt
// session. The response is the session view: not_found, already_submitted,
// expired and active each render distinctly.
func OpenSessionHandler(engine *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := identityFromContext(r)
		if !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		quizID := chi.URLParam(r, "quizID")
		s, err := engine.Open(r.Context(), quizID, user)
		if err != nil {
			// Load error: surfaced whole, no retry loop. The student
			// re-navigates.
			http.Error(w, "load failed: "+err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, s.Snapshot())
	}
}

// GET /quizzes/{quizID}/session — current view, including the recomputed
// remaining time for timed quizzes.
func GetSessionHandler(engine *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := identityFromContext(r)
		if !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		s, ok := engine.Get(chi.URLParam(r, "quizID"), user.ID)
		if !ok {
			http.Error(w, "no open session", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, s.Snapshot())
	}
}

// POST /quizzes/{quizID}/session/answers  { "question_id": "...", "answer": "..." }
func SaveAnswerHandler(engine *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := identityFromContext(r)
		if !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		s, ok := engine.Get(chi.URLParam(r, "quizID"), user.ID)
		if !ok {
			http.Error(w, "no open session", http.StatusNotFound)
			return
		}
		var req struct {
			QuestionID string `json:"question_id"`
			Answer     string `json:"answer"`
			Index      *int   `json:"index,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if err := s.Answer(req.QuestionID, req.Answer); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if req.Index != nil {
			_ = s.Navigate(*req.Index)
		}
		writeJSON(w, http.StatusOK, s.Snapshot())
	}
}

// POST /quizzes/{quizID}/session/events  { "type": "hide" | "submit" }
// The browser reports page-lifecycle events here; the engine owns what they
// mean. Submit from the student and hide-escalation race the countdown for
// the one submitting transition.
func SessionEventHandler(engine *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := identityFromContext(r)
		if !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		quizID := chi.URLParam(r, "quizID")
		s, ok := engine.Get(quizID, user.ID)
		if !ok {
			http.Error(w, "no open session", http.StatusNotFound)
			return
		}
		var req struct {
			Type string `json:"type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		switch req.Type {
		case "hide":
			out := s.ReportHide(r.Context())
			if out.Warned || out.Forced {
				engine.RecordViolation(r.Context(), quizID, user.ID, out.Violations, out.Forced)
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"violations": out.Violations,
				"warned":     out.Warned,
				"forced":     out.Forced,
				"state":      s.State(),
			})
		case "submit":
			s.Submit(r.Context(), session.TriggerStudent)
			writeJSON(w, http.StatusOK, s.Snapshot())
		default:
			http.Error(w, "unknown event type", 400)
		}
	}
}

// DELETE /quizzes/{quizID}/session — the student navigated away. An
// unsubmitted session is discarded; nothing durable exists yet.
func LeaveSessionHandler(engine *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := identityFromContext(r)
		if !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		engine.Leave(r.Context(), chi.URLParam(r, "quizID"), user.ID)
		w.WriteHeader(http.StatusNoContent)
	}
}
