package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	api "github.com/brightpath/brightpath-lms/internal/api/http"
	auth "github.com/brightpath/brightpath-lms/internal/auth/middleware"
	"github.com/brightpath/brightpath-lms/internal/config"
	"github.com/brightpath/brightpath-lms/internal/db"
	"github.com/brightpath/brightpath-lms/internal/eventlog"
	"github.com/brightpath/brightpath-lms/internal/grading"
	"github.com/brightpath/brightpath-lms/internal/quiz"
	"github.com/brightpath/brightpath-lms/internal/rbac"
	"github.com/brightpath/brightpath-lms/internal/session"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	store := quiz.NewSQLStore(dbh, grading.NewDefaultGrader())
	events := eventlog.NewRepo(dbh)
	engine := session.NewEngine(store, events,
		session.WithViolationThreshold(cfg.ViolationThreshold))

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthSecret)
	if err := auth.EnsureUser(ctx, dbh, uuid.NewString(), cfg.AdminUser, "admin", cfg.AdminPassHash); err != nil {
		log.Fatalf("seed admin user: %v", err)
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))

	// Protected API (JWT -> subject+role in context -> RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Teacher: upload quiz definitions
		pr.With(rbac.Require("quiz:create")).
			Post("/quizzes", api.UploadQuizHandler(store))

		pr.With(rbac.Require("quiz:list")).
			Get("/quizzes", api.ListQuizzesHandler(store))
		pr.With(rbac.Require("quiz:view")).
			Get("/quizzes/{quizID}", api.GetQuizHandler(store))

		// Student attempt session flow
		pr.With(rbac.Require("session:open")).
			Post("/quizzes/{quizID}/session", api.OpenSessionHandler(engine))
		pr.With(rbac.Require("session:open")).
			Get("/quizzes/{quizID}/session", api.GetSessionHandler(engine))
		pr.With(rbac.Require("session:answer")).
			Post("/quizzes/{quizID}/session/answers", api.SaveAnswerHandler(engine))
		pr.With(rbac.Require("session:event")).
			Post("/quizzes/{quizID}/session/events", api.SessionEventHandler(engine))
		pr.With(rbac.Require("session:leave")).
			Delete("/quizzes/{quizID}/session", api.LeaveSessionHandler(engine))

		// Attempt records
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(store))

		// Users (teacher/admin)
		pr.With(rbac.Require("users:create")).
			Post("/users", api.CreateUserHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
