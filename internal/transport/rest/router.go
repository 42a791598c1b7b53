package rest

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"assessd/internal/service"
	"assessd/internal/transport/rest/handler"
	"assessd/internal/transport/rest/middleware"
	"assessd/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService       *service.AuthService
	AssessmentService *service.AssessmentService
	WSHub             *ws.Hub
	Logger            *zap.Logger
	// CORSOrigins is a comma separated allow list, "*" allows any origin
	CORSOrigins string
	// Metrics defaults to the global Prometheus registry
	Metrics http.Handler
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cors := newCORS(c.CORSOrigins)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	assessmentHandler := handler.NewAssessmentHandler(c.AssessmentService, logger)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.AssessmentService, cors.allowOrigin, logger)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(cors.middleware)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	metricsHandler := c.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler).Methods("GET")

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	// WebSocket routes (public with token in query param)
	v1.HandleFunc("/ws/sessions/{id}", wsHandler.WatchSession).Methods("GET")

	// Recruiter routes
	recruiterRoutes := v1.PathPrefix("/recruiter").Subrouter()
	recruiterRoutes.Use(authMW.RequireRecruiter)

	recruiterRoutes.HandleFunc("/candidates/tokens", authHandler.IssueCandidateToken).Methods("POST", "OPTIONS")
	recruiterRoutes.HandleFunc("/sessions/{id}", assessmentHandler.Inspect).Methods("GET", "OPTIONS")
	recruiterRoutes.HandleFunc("/sessions/{id}/result", assessmentHandler.InspectResult).Methods("GET", "OPTIONS")
	recruiterRoutes.HandleFunc("/subjects/{subjectRef}/sessions/latest", assessmentHandler.SubjectLatest).Methods("GET", "OPTIONS")

	// Candidate routes
	candidateRoutes := v1.NewRoute().Subrouter()
	candidateRoutes.Use(authMW.RequireCandidate)

	candidateRoutes.HandleFunc("/catalogs/{instrument}", assessmentHandler.Catalog).Methods("GET", "OPTIONS")
	candidateRoutes.HandleFunc("/me/sessions", assessmentHandler.Start).Methods("POST", "OPTIONS")
	candidateRoutes.HandleFunc("/me/sessions/latest", assessmentHandler.Latest).Methods("GET", "OPTIONS")
	candidateRoutes.HandleFunc("/me/sessions/{id}", assessmentHandler.Get).Methods("GET", "OPTIONS")
	candidateRoutes.HandleFunc("/me/sessions/{id}/responses", assessmentHandler.Record).Methods("PUT", "OPTIONS")
	candidateRoutes.HandleFunc("/me/sessions/{id}/descriptors/{block}/{itemId}", assessmentHandler.RemoveDescriptor).Methods("DELETE", "OPTIONS")
	candidateRoutes.HandleFunc("/me/sessions/{id}/finalize", assessmentHandler.Finalize).Methods("POST", "OPTIONS")
	candidateRoutes.HandleFunc("/me/sessions/{id}/result", assessmentHandler.Result).Methods("GET", "OPTIONS")

	return r
}

type corsPolicy struct {
	any     bool
	origins map[string]bool
}

func newCORS(origins string) *corsPolicy {
	p := &corsPolicy{origins: map[string]bool{}}
	for _, o := range strings.Split(origins, ",") {
		o = strings.TrimSpace(o)
		switch o {
		case "":
		case "*":
			p.any = true
		default:
			p.origins[o] = true
		}
	}
	if len(p.origins) == 0 {
		p.any = true
	}
	return p
}

// allowOrigin also guards websocket upgrades; requests without an Origin
// header are not browser requests and pass.
func (p *corsPolicy) allowOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || p.any || p.origins[origin]
}

func (p *corsPolicy) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case p.any:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && p.origins[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
