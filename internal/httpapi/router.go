// Package httpapi implements the control-plane HTTP API (spec.md §6):
// gorilla/mux path routing, API-key auth, and request-id propagation
// layered atop internal/sandbox.Service. Route registration follows the
// teacher's pattern of a single NewRouter constructor wiring health
// endpoints alongside the domain routes.
package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/alibaba/OpenSandbox/internal/apierr"
	"github.com/alibaba/OpenSandbox/internal/health"
	"github.com/alibaba/OpenSandbox/internal/reqid"
	"github.com/alibaba/OpenSandbox/internal/sandbox"
)

const apiKeyHeader = "OPEN-SANDBOX-API-KEY"

// NewRouter builds the complete control-plane mux.Router: health
// endpoints are unauthenticated, every /sandboxes route requires the
// configured API key and is wrapped with request-id propagation.
func NewRouter(svc *sandbox.Service, apiKey string, checker *health.HealthChecker, logger *logrus.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(reqid.Middleware)
	router.Use(loggingMiddleware(logger))

	router.Handle("/healthz", checker.LivenessHandler()).Methods(http.MethodGet)
	router.Handle("/readyz", checker.ReadinessHandler()).Methods(http.MethodGet)

	h := NewHandlers(svc)

	api := router.NewRoute().Subrouter()
	api.Use(apiKeyMiddleware(apiKey))

	api.HandleFunc("/sandboxes", h.CreateSandbox).Methods(http.MethodPost)
	api.HandleFunc("/sandboxes", h.ListSandboxes).Methods(http.MethodGet)
	api.HandleFunc("/sandboxes/{id}", h.GetSandbox).Methods(http.MethodGet)
	api.HandleFunc("/sandboxes/{id}", h.DeleteSandbox).Methods(http.MethodDelete)
	api.HandleFunc("/sandboxes/{id}:pause", h.PauseSandbox).Methods(http.MethodPost)
	api.HandleFunc("/sandboxes/{id}:resume", h.ResumeSandbox).Methods(http.MethodPost)
	api.HandleFunc("/sandboxes/{id}:renewExpiration", h.RenewExpiration).Methods(http.MethodPost)
	api.HandleFunc("/sandboxes/{id}/endpoint", h.GetEndpoint).Methods(http.MethodGet)

	return router
}

// apiKeyMiddleware enforces the OPEN-SANDBOX-API-KEY header when a key
// is configured. An empty configured key disables auth entirely, which
// is only ever appropriate for local development.
func apiKeyMiddleware(apiKey string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if strings.TrimSpace(r.Header.Get(apiKeyHeader)) != apiKey {
				writeError(w, apierr.New(apierr.Unauthorized, "invalid or missing API key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.WithContext(r.Context()).WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
			}).Info("handling request")
			next.ServeHTTP(w, r)
		})
	}
}
