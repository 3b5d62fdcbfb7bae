// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rampart/platform/common/usage"
	"rampart/platform/gateway/exfiltration"
	"rampart/platform/gateway/injection"
	"rampart/platform/gateway/pii"
	"rampart/platform/shared/logger"
)

const serviceVersion = "1.0.0"

var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rampart_requests_total",
			Help: "Total HTTP requests by method and status class",
		},
		[]string{"method", "status"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rampart_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	promAnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rampart_analyses_total",
			Help: "Content inspections by context type",
		},
		[]string{"context"},
	)
	promThreatsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rampart_threats_detected_total",
			Help: "Threats detected by type",
		},
		[]string{"type"},
	)
	promBlockedRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rampart_blocked_requests_total",
			Help: "Requests blocked by policy or threat verdict",
		},
	)
	promRateLimitRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rampart_ratelimit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)

func init() {
	prometheus.MustRegister(promRequestsTotal)
	prometheus.MustRegister(promRequestDuration)
	prometheus.MustRegister(promAnalysesTotal)
	prometheus.MustRegister(promThreatsDetected)
	prometheus.MustRegister(promBlockedRequests)
	prometheus.MustRegister(promRateLimitRejections)
}

// appReady gates the health endpoint. The server binds before the slow
// initialization (database, Redis) so load balancer checks pass during
// warm-up.
var appReady atomic.Bool

// Server wires every gateway component behind the HTTP surface.
type Server struct {
	cfg *Config
	log *logger.Logger
	db  *sql.DB

	users        *UserRepository
	keys         *APIKeyRepository
	providerKeys *ProviderKeyRepository
	policies     *PolicyRepository
	engine       *PolicyEngine
	incidents    *IncidentRepository
	sessions     *SessionManager
	analyzer     *Analyzer
	exfil        *exfiltration.Monitor
	pii          *pii.Detector
	toxicity     pii.ToxicityClassifier
	usage        *usage.Recorder

	limiter      *SlidingWindowLimiter
	redisLimiter *RedisLimiter
}

// NewServer builds the component graph. The database schema is ensured
// before any repository is used.
func NewServer(ctx context.Context, cfg *Config, db *sql.DB) (*Server, error) {
	if err := EnsureSchema(ctx, db); err != nil {
		return nil, err
	}

	cipher, err := NewCredentialCipher(cfg.KeyEncryptionSecret)
	if err != nil {
		return nil, err
	}

	incidents := NewIncidentRepository(db)
	exfil := exfiltration.NewMonitor()
	policies := NewPolicyRepository(db)

	var piiOpts []pii.DetectorOption
	if cfg.PIINEREndpoint != "" {
		piiOpts = append(piiOpts, pii.WithLabeler(pii.NewHTTPLabeler(cfg.PIINEREndpoint)))
	}

	s := &Server{
		cfg:          cfg,
		log:          logger.New("gateway"),
		db:           db,
		users:        NewUserRepository(db),
		keys:         NewAPIKeyRepository(db),
		providerKeys: NewProviderKeyRepository(db, cipher),
		policies:     policies,
		engine:       NewPolicyEngine(policies),
		incidents:    incidents,
		sessions:     NewSessionManager(cfg.JWTSecretKey, cfg.SessionTTL()),
		analyzer:     NewAnalyzer(buildInjectionDetector(cfg), exfil, incidents),
		exfil:        exfil,
		pii:          pii.NewDetector(piiOpts...),
		toxicity:     pii.NewHeuristicToxicity(cfg.ToxicityThreshold),
		usage:        usage.NewRecorder(db),
	}

	defaults := LimitProfile{PerMinute: cfg.RateLimitPerMinute, PerHour: cfg.RateLimitPerHour}
	limiterBackend := "memory"
	if cfg.RedisURL != "" {
		redisLimiter, err := NewRedisLimiter(cfg.RedisURL, defaults)
		if err != nil {
			return nil, err
		}
		s.redisLimiter = redisLimiter
		limiterBackend = "redis"
	} else {
		s.limiter = NewSlidingWindowLimiter(defaults)
	}

	s.log.Info("", "", "gateway components initialized", map[string]interface{}{
		"detector":      cfg.PromptInjectionDetector,
		"limiter":       limiterBackend,
		"session_ttl_s": int(cfg.SessionTTL() / time.Second),
	})

	return s, nil
}

// buildInjectionDetector maps the configured detector name onto a
// pipeline. Deep modes degrade to the regex pipeline when no inference
// endpoint is configured; fast mode skips the deep stage entirely.
func buildInjectionDetector(cfg *Config) injection.Detector {
	switch cfg.PromptInjectionDetector {
	case "regex":
		return injection.NewRegexDetector()
	case "hybrid", "deberta":
		if cfg.PromptInjectionFastMode {
			return injection.NewRegexDetector()
		}
		if cfg.PromptInjectionEndpoint == "" {
			log.Printf("[GATEWAY] %s detector requested without PROMPT_INJECTION_ENDPOINT, using regex", cfg.PromptInjectionDetector)
			return injection.NewRegexDetector()
		}

		runtime := "torch"
		if cfg.PromptInjectionUseONNX {
			runtime = "onnx"
		}
		classifier := injection.NewHTTPClassifier(cfg.PromptInjectionEndpoint,
			injection.WithThreshold(cfg.PromptInjectionThreshold),
			injection.WithRuntime(runtime))

		if cfg.PromptInjectionDetector == "deberta" {
			// Deep-only: a zero trigger sends every input to the classifier.
			return injection.NewHybridDetector(classifier, injection.WithRegexTrigger(0))
		}
		return injection.NewHybridDetector(classifier)
	default:
		return injection.NewRegexDetector()
	}
}

// Close releases background workers and connections.
func (s *Server) Close() {
	if s.usage != nil {
		s.usage.Close()
	}
	if s.limiter != nil {
		s.limiter.Close()
	}
	if s.redisLimiter != nil {
		_ = s.redisLimiter.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

// rateLimitMiddleware returns whichever limiter backend is configured.
func (s *Server) rateLimitMiddleware() func(http.Handler) http.Handler {
	if s.redisLimiter != nil {
		return s.redisLimiter.Middleware
	}
	return s.limiter.Middleware
}

// Routes assembles the full router with the middleware chain:
// security headers, size cap, metrics, rate limiting, bearer auth.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleRoot).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/health/ready", s.handleHealthReady).Methods("GET")
	r.HandleFunc("/health/live", s.handleHealthLive).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", s.handleRegister).Methods("POST")
	api.HandleFunc("/auth/login", s.handleLogin).Methods("POST")
	api.HandleFunc("/auth/refresh", RequireSession(s.handleRefresh)).Methods("POST")
	api.HandleFunc("/auth/me", RequireSession(s.handleMe)).Methods("GET")

	api.HandleFunc("/security/analyze", RequirePermission(PermSecurityAnalyze, s.handleAnalyze)).Methods("POST")
	api.HandleFunc("/security/analyze/batch", RequirePermission(PermSecurityBatch, s.handleAnalyzeBatch)).Methods("POST")
	api.HandleFunc("/security/scan-indirect", RequirePermission(PermSecurityAnalyze, s.handleScanIndirect)).Methods("POST")
	api.HandleFunc("/security/stats", RequirePermission(PermAnalyticsRead, s.handleSecurityStats)).Methods("GET")
	api.HandleFunc("/security/incidents", RequirePermission(PermAnalyticsRead, s.handleListIncidents)).Methods("GET")
	api.HandleFunc("/security/incidents/{id}", RequirePermission(PermAnalyticsRead, s.handleGetIncident)).Methods("GET")
	api.HandleFunc("/security/incidents/{id}/status", RequireSession(s.handleIncidentStatus)).Methods("PATCH")

	api.HandleFunc("/filter", RequirePermission(PermFilterPII, s.handleFilter)).Methods("POST")
	api.HandleFunc("/filter/redact", RequirePermission(PermFilterPII, s.handleFilterRedact)).Methods("POST")
	api.HandleFunc("/filter/toxicity", RequirePermission(PermFilterToxicity, s.handleFilterToxicity)).Methods("POST")
	api.HandleFunc("/filter/stats", RequirePermission(PermAnalyticsRead, s.handleFilterStats)).Methods("GET")

	api.HandleFunc("/rampart-keys", RequireSession(s.handleCreateKey)).Methods("POST")
	api.HandleFunc("/rampart-keys", RequireSession(s.handleListKeys)).Methods("GET")
	api.HandleFunc("/rampart-keys/{id}", RequireSession(s.handleRevokeKey)).Methods("DELETE")
	api.HandleFunc("/rampart-keys/{id}/usage", RequireSession(s.handleKeyUsage)).Methods("GET")

	api.HandleFunc("/providers/keys", RequireSession(s.handleUpsertProviderKey)).Methods("POST")
	api.HandleFunc("/providers/keys", RequireSession(s.handleListProviderKeys)).Methods("GET")
	api.HandleFunc("/providers/keys/{provider}", RequireSession(s.handleDeleteProviderKey)).Methods("DELETE")

	api.HandleFunc("/policies", RequireSession(s.handleCreatePolicy)).Methods("POST")
	api.HandleFunc("/policies", RequireSession(s.handleListPolicies)).Methods("GET")
	api.HandleFunc("/policies/templates", RequireSession(s.handlePolicyTemplates)).Methods("GET")
	api.HandleFunc("/policies/templates/{template}", RequireSession(s.handleCreatePolicyFromTemplate)).Methods("POST")
	api.HandleFunc("/policies/evaluate", RequirePermission(PermSecurityAnalyze, s.handleEvaluatePolicies)).Methods("POST")
	api.HandleFunc("/policies/defaults", RequireSession(s.handleGetPolicyDefaults)).Methods("GET")
	api.HandleFunc("/policies/defaults", RequireSession(s.handleSetPolicyDefaults)).Methods("PUT")
	api.HandleFunc("/policies/{id}", RequireSession(s.handleGetPolicy)).Methods("GET")
	api.HandleFunc("/policies/{id}", RequireSession(s.handleUpdatePolicy)).Methods("PUT")
	api.HandleFunc("/policies/{id}", RequireSession(s.handleDeletePolicy)).Methods("DELETE")

	api.HandleFunc("/llm/chat", RequirePermission(PermLLMChat, s.handleLLMChat)).Methods("POST")

	auth := NewBearerAuth(s.sessions, s.keys, s.users)

	var handler http.Handler = r
	handler = auth.Middleware(handler)
	handler = s.rateLimitMiddleware()(handler)
	handler = instrumentRequests(handler)
	handler = limitRequestBody(s.cfg.MaxRequestBytes)(handler)
	handler = securityHeaders(s.cfg.CORSOrigins)(handler)
	handler = buildCORS(s.cfg.CORSOrigins).Handler(handler)
	return handler
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "rampart-gateway",
		"version": serviceVersion,
		"docs":    "/api/v1",
	})
}

// handleHealth answers 200 even during warm-up so load balancer checks
// pass; the body carries the real state.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "starting"
	if appReady.Load() {
		status = "healthy"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"service":   "rampart-gateway",
		"version":   serviceVersion,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	if !appReady.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	if err := s.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "reason": "database unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleHealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Run is the exported entry point for the gateway service. It blocks
// until SIGINT or SIGTERM, then drains in-flight requests.
func Run() {
	ctx := context.Background()

	cfg, err := LoadConfig(ctx)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	server, err := NewServer(ctx, cfg, db)
	if err != nil {
		log.Fatalf("Failed to initialize gateway: %v", err)
	}
	defer server.Close()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Rampart gateway listening on port %s (environment: %s)", cfg.Port, cfg.Environment)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	appReady.Store(true)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	appReady.Store(false)
	log.Println("Shutting down gateway...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// decodeJSON decodes a request body into dst. Malformed bodies surface
// as field errors so handlers can answer 400 uniformly.
func decodeJSON(r *http.Request, dst interface{}) error {
	defer func() { _ = r.Body.Close() }()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errField(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}
