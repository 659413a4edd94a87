package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-tasklist/internal/auth"
	"github.com/ovaphlow/pitchfork/service-tasklist/internal/task"
	taskrepo "github.com/ovaphlow/pitchfork/service-tasklist/internal/task/repo"
	"github.com/ovaphlow/pitchfork/service-tasklist/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-tasklist/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-tasklist/internal/web"
	"github.com/ovaphlow/pitchfork/service-tasklist/pkg/utilities"
)

// Options carries the settings the HTTP layer needs beyond the database.
type Options struct {
	SigningKey  []byte
	Issuer      string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	IDNode      int64
	CORSOrigins []string
	// nil means bcrypt with the default cost
	Hasher user.PasswordHasher
	// nil means auth.DefaultRules
	Rules []auth.Rule
}

// RegisterRoutes wires repositories, services and handlers and mounts them on
// a chi router behind the middleware chain.
func RegisterRoutes(logger *zap.SugaredLogger, db *sqlx.DB, opts Options) http.Handler {
	rules := opts.Rules
	if rules == nil {
		rules = auth.DefaultRules()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	userSvc := user.NewUserService(userrepo.NewUserRepo(db), opts.Hasher, logger)
	taskSvc := task.NewTaskService(taskrepo.NewTaskRepo(db), logger)
	codec := auth.NewTokenCodec(opts.SigningKey, opts.Issuer, utilities.NewIDGenerator(opts.IDNode))
	issuer := auth.NewSessionIssuer(codec, userSvc, opts.AccessTTL, opts.RefreshTTL, logger)

	validate := web.NewValidator()
	authHandler := auth.NewHandler(issuer, validate, logger)
	userHandler := user.NewHandler(userSvc, taskSvc, validate, logger)
	taskHandler := task.NewHandler(taskSvc, userSvc, validate, logger)

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(logger))
	r.Use(SecurityHeadersMiddleware())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(MetricsMiddleware)
	r.Use(auth.Authenticator(codec, userSvc, logger))
	r.Use(auth.Authorizer(rules, logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			logger.Warnw("health check failed", "err", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", userHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
		})
		r.Route("/users", func(r chi.Router) {
			r.Put("/", userHandler.Update)
			r.Get("/{id}", userHandler.Get)
			r.Delete("/{id}", userHandler.Delete)
			r.Get("/{id}/tasks", userHandler.ListTasks)
			r.Post("/{id}/tasks", userHandler.CreateTask)
		})
		r.Route("/tasks", func(r chi.Router) {
			r.Put("/", taskHandler.Update)
			r.Get("/{id}", taskHandler.Get)
			r.Delete("/{id}", taskHandler.Delete)
		})
		r.Route("/admin/users/{id}", func(r chi.Router) {
			r.Get("/roles", userHandler.Roles)
			r.Post("/roles", userHandler.GrantRole)
		})
	})
	return r
}
