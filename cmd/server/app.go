package main

import (
	"net/http"
	"time"

	"github.com/diewo77/go-saas/auth"
	"github.com/diewo77/go-saas/httpx"
	"github.com/diewo77/go-saas/internal/policy"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App is the main application handler that sets up all routes.
type App struct {
	router    *mux.Router
	db        *gorm.DB
	routerCfg *RouterConfig
	log       logrus.FieldLogger
}

// NewApp creates a new application with all routes configured.
func NewApp(db *gorm.DB, routerCfg *RouterConfig, log logrus.FieldLogger) *App {
	app := &App{
		router:    mux.NewRouter(),
		db:        db,
		routerCfg: routerCfg,
		log:       log,
	}
	app.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	})
	app.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})
	app.setupRoutes()
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// setupRoutes mounts three layers: public routes, routes needing a bearer
// token, and organization routes that also need a membership.
func (a *App) setupRoutes() {
	rc := a.routerCfg
	r := a.router
	r.Use(rc.Metrics.HTTPMetricsMiddleware, a.withLogging, auth.Middleware(rc.Issuer))

	// Operations
	r.HandleFunc("/healthz", a.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", policy.Handler(rc.Gatherer)).Methods(http.MethodGet)

	public := r.NewRoute().Subrouter()

	authed := r.NewRoute().Subrouter()
	authed.Use(auth.RequireAuth)

	rc.AuthHandler.Register(public, authed)

	org := authed.PathPrefix("/organizations/{slug}").Subrouter()
	org.Use(rc.AuthGate.Membership())

	rc.OrganizationHandler.Register(authed, org)
	rc.MemberHandler.Register(org)
	rc.InviteHandler.Register(public, authed, org)
	rc.ClientHandler.Register(org)
	rc.ProductHandler.Register(org)
	rc.PurchaseHandler.Register(org)
	rc.MetricsHandler.Register(org)
	rc.BillingHandler.Register(org)
}

func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	if err := a.db.WithContext(r.Context()).Exec("SELECT 1").Error; err != nil {
		a.log.WithError(err).Error("health check failed")
		httpx.JSONError(w, http.StatusServiceUnavailable, "database_unavailable", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusRecorder captures the status code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withLogging adds request logging middleware.
func (a *App) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		entry := a.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		})
		if rec.status >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request")
	})
}
