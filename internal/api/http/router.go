package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/examdesk/examdesk/internal/api/render"
	"github.com/examdesk/examdesk/internal/audit"
	authmw "github.com/examdesk/examdesk/internal/auth/middleware"
	"github.com/examdesk/examdesk/internal/catalog"
	"github.com/examdesk/examdesk/internal/exam"
	"github.com/examdesk/examdesk/internal/logging"
	"github.com/examdesk/examdesk/internal/metrics"
	"github.com/examdesk/examdesk/internal/question"
	"github.com/examdesk/examdesk/internal/rbac"
	"github.com/examdesk/examdesk/internal/users"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	DB      *sqlx.DB
	Log     *zap.Logger
	Metrics *metrics.Metrics
	Auth    *authmw.AuthService

	Catalog   catalog.Store
	Questions question.Store
	Exams     exam.Store
	Previewer *exam.Previewer
	Users     users.Store
	Events    *audit.EventRepo

	CORSOrigins    []string
	RequestTimeout time.Duration
	// Debug keeps the token's role when the users table can't be read.
	Debug bool
}

func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging.RequestLogger(d.Log), middleware.Recoverer)
	r.Use(d.Metrics.Middleware)
	r.Use(middleware.Timeout(d.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		render.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := d.DB.PingContext(r.Context()); err != nil {
			d.Log.Warn("readiness check failed", zap.Error(err))
			render.Error(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		render.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Handle("/metrics", d.Metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/signup", SignupHandler(d.Users, d.Auth, d.Log))
		api.Post("/auth/signin", SigninHandler(d.Users, d.Auth, d.Log))

		api.Group(func(pr chi.Router) {
			pr.Use(authmw.JWTMiddleware(d.Auth))
			pr.Use(authmw.AttachRoleFromDB(d.DB, d.Debug))

			pr.With(rbac.Require("me:view")).Get("/me", MeHandler(d.Users, d.Log))
			pr.With(rbac.Require("me:view")).Post("/me/password", ChangePasswordHandler(d.Users, d.Log))

			pr.Mount("/catalog", catalog.Routes(d.Catalog, d.Log))
			pr.Mount("/questions", question.Routes(d.Questions, d.Log))
			pr.Mount("/exam-structures", exam.StructureRoutes(d.Exams, d.Previewer, d.Log))
			pr.Mount("/scheduled-exams", exam.ScheduleRoutes(d.Exams, d.Previewer, d.Log))

			pr.Route("/users", func(ur chi.Router) {
				ur.With(rbac.Require("users:list")).Get("/", ListUsersHandler(d.Users, d.Log))
				ur.With(rbac.Require("users:edit")).Patch("/{id}", UpdateUserHandler(d.Users, d.Log))
				ur.With(rbac.Require("users:edit")).Post("/bulk", BulkUpsertUsersHandler(d.Users, d.Log))
			})
			pr.With(rbac.Require("audit:view")).Get("/audit", AuditHandler(d.Events, d.Log))
		})
	})
	return r
}
