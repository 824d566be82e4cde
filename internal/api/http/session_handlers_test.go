package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/brightpath/brightpath-lms/internal/grading"
	"github.com/brightpath/brightpath-lms/internal/quiz"
	"github.com/brightpath/brightpath-lms/internal/rbac"
	"github.com/brightpath/brightpath-lms/internal/session"
)

// asUser injects the authenticated identity the JWT middleware would attach.
func asUser(id, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := rbac.WithSubject(r.Context(), id)
			ctx = rbac.WithRole(ctx, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newTestServer(t *testing.T, userID, role string) (*httptest.Server, *quiz.MemStore, *session.Engine) {
	t.Helper()
	store := quiz.NewMemStore(grading.NewDefaultGrader())
	engine := session.NewEngine(store, nil)

	r := chi.NewRouter()
	r.Use(asUser(userID, role))
	r.With(rbac.Require("quiz:create")).Post("/quizzes", UploadQuizHandler(store))
	r.With(rbac.Require("quiz:view")).Get("/quizzes/{quizID}", GetQuizHandler(store))
	r.With(rbac.Require("session:open")).Post("/quizzes/{quizID}/session", OpenSessionHandler(engine))
	r.With(rbac.Require("session:open")).Get("/quizzes/{quizID}/session", GetSessionHandler(engine))
	r.With(rbac.Require("session:answer")).Post("/quizzes/{quizID}/session/answers", SaveAnswerHandler(engine))
	r.With(rbac.Require("session:event")).Post("/quizzes/{quizID}/session/events", SessionEventHandler(engine))
	r.With(rbac.Require("session:leave")).Delete("/quizzes/{quizID}/session", LeaveSessionHandler(engine))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store, engine
}

func seedQuiz(t *testing.T, store *quiz.MemStore) {
	t.Helper()
	err := store.PutQuiz(context.Background(), quiz.Quiz{
		ID:    "quiz-1",
		Title: "States of Matter",
		Questions: []quiz.Question{
			{ID: "q1", Type: "mcq_single", Points: 1, AnswerKey: []string{"b"}},
			{ID: "q2", Type: "mcq_single", Points: 1, AnswerKey: []string{"a"}},
		},
	})
	if err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestSessionFlowOverHTTP(t *testing.T) {
	srv, store, _ := newTestServer(t, "stu-1", "student")
	seedQuiz(t, store)
	base := srv.URL + "/quizzes/quiz-1/session"

	resp, view := doJSON(t, http.MethodPost, base, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open: status %d", resp.StatusCode)
	}
	if view["state"] != "active" {
		t.Fatalf("open: state %v", view["state"])
	}

	resp, _ = doJSON(t, http.MethodPost, base+"/answers",
		map[string]any{"question_id": "q1", "answer": "b", "index": 1})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("answer: status %d", resp.StatusCode)
	}

	resp, view = doJSON(t, http.MethodPost, base+"/events", map[string]string{"type": "submit"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: status %d", resp.StatusCode)
	}
	if view["state"] != "submitted" {
		t.Fatalf("submit: state %v", view["state"])
	}
	attempt, ok := view["attempt"].(map[string]any)
	if !ok {
		t.Fatalf("submit: no attempt in view: %v", view)
	}
	// One of two points.
	if attempt["score"] != 50.0 {
		t.Fatalf("submit: score %v", attempt["score"])
	}

	// Re-open after submission resolves to already_submitted.
	resp, view = doJSON(t, http.MethodPost, base, nil)
	if resp.StatusCode != http.StatusOK || view["state"] != "already_submitted" {
		t.Fatalf("reopen: status %d state %v", resp.StatusCode, view["state"])
	}
}

func TestHideEventsEscalateOverHTTP(t *testing.T) {
	srv, store, _ := newTestServer(t, "stu-1", "student")
	seedQuiz(t, store)
	base := srv.URL + "/quizzes/quiz-1/session"

	if resp, _ := doJSON(t, http.MethodPost, base, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("open failed")
	}

	hide := map[string]string{"type": "hide"}
	_, out := doJSON(t, http.MethodPost, base+"/events", hide)
	if out["warned"] != true || out["forced"] == true {
		t.Fatalf("strike 1: %v", out)
	}
	_, out = doJSON(t, http.MethodPost, base+"/events", hide)
	if out["warned"] != true {
		t.Fatalf("strike 2: %v", out)
	}
	_, out = doJSON(t, http.MethodPost, base+"/events", hide)
	if out["forced"] != true || out["state"] != "submitted" {
		t.Fatalf("strike 3: %v", out)
	}
}

func TestAnswerAfterSubmitIsConflict(t *testing.T) {
	srv, store, _ := newTestServer(t, "stu-1", "student")
	seedQuiz(t, store)
	base := srv.URL + "/quizzes/quiz-1/session"

	doJSON(t, http.MethodPost, base, nil)
	doJSON(t, http.MethodPost, base+"/events", map[string]string{"type": "submit"})

	resp, _ := doJSON(t, http.MethodPost, base+"/answers",
		map[string]any{"question_id": "q1", "answer": "b"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestLeaveRemovesSession(t *testing.T) {
	srv, store, engine := newTestServer(t, "stu-1", "student")
	seedQuiz(t, store)
	base := srv.URL + "/quizzes/quiz-1/session"

	doJSON(t, http.MethodPost, base, nil)
	resp, _ := doJSON(t, http.MethodDelete, base, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("leave: status %d", resp.StatusCode)
	}
	if _, ok := engine.Get("quiz-1", "stu-1"); ok {
		t.Fatalf("session still live after leave")
	}
	// Nothing was persisted for the abandoned session.
	if _, err := store.FindAttempt(context.Background(), "quiz-1", "stu-1"); err == nil {
		t.Fatalf("abandoned session left an attempt behind")
	}
}

func TestStudentCannotUploadQuiz(t *testing.T) {
	srv, _, _ := newTestServer(t, "stu-1", "student")
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/quizzes",
		map[string]any{"title": "X", "questions": []any{map[string]any{"type": "mcq_single"}}})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestUploadAndFetchStripsKeys(t *testing.T) {
	srv, _, _ := newTestServer(t, "teach-1", "teacher")
	resp, out := doJSON(t, http.MethodPost, srv.URL+"/quizzes", map[string]any{
		"title": "Acids and Bases",
		"questions": []any{
			map[string]any{"type": "mcq_single", "points": 1, "answer_key": []string{"a"}},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload: status %d", resp.StatusCode)
	}
	id, _ := out["id"].(string)
	if id == "" {
		t.Fatalf("upload: no id returned")
	}

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/quizzes/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fetch: status %d", resp.StatusCode)
	}
	qs, _ := body["questions"].([]any)
	if len(qs) != 1 {
		t.Fatalf("fetch: questions %v", body["questions"])
	}
	if q0, _ := qs[0].(map[string]any); q0["answer_key"] != nil {
		t.Fatalf("answer key leaked: %v", q0)
	}
}
