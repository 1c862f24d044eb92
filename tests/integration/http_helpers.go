package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tmcfarland/authgate/internal/database"
	"github.com/tmcfarland/authgate/internal/handlers"
	"github.com/tmcfarland/authgate/internal/identity"
	middlewareCustom "github.com/tmcfarland/authgate/internal/middleware"
	"github.com/tmcfarland/authgate/internal/repositories"
	"github.com/tmcfarland/authgate/internal/routes"
	"github.com/tmcfarland/authgate/internal/services"
	pkghttp "github.com/tmcfarland/authgate/pkg/http"
	pkglogger "github.com/tmcfarland/authgate/pkg/logger"
)

// TestServer wraps httptest.Server with the postgres-backed gate stack
type TestServer struct {
	Server   *httptest.Server
	States   *repositories.StateRepository
	Attempts *repositories.AttemptLogRepository
	Gate     *services.RateLimitService
	Config   services.RateLimitConfig
}

// NewTestServer wires the full HTTP stack against a real database. Identity
// resolution runs with no edge or echo tiers configured, so it falls back to
// the fingerprint and tests make no outbound calls.
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	gateConfig := services.RateLimitConfig{
		MaxFailedAttempts: 5,
		BaseLockout:       1 * time.Minute,
		MaxLockout:        1 * time.Hour,
		AttemptTTL:        2 * time.Hour,
	}

	states, attempts := InitializeRepositories(db, gateConfig.AttemptTTL)

	resolver := identity.NewResolver(identity.ResolverConfig{}, nil, nil, logger)
	auditLogger := pkglogger.NewAuditLogger(logger)

	gate := services.NewRateLimitService(states, gateConfig, logger)
	attemptService := services.NewAttemptService(gate, resolver, attempts, auditLogger, logger)

	gateHandler := handlers.NewGateHandler(attemptService)

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middlewareCustom.SecureLogger(logger, &pkghttp.IPConfig{}))
	router.Use(chiMiddleware.Recoverer)

	// High per-IP budget keeps the transport limiter out of the way; all
	// test traffic shares 127.0.0.1
	routes.RegisterRoutes(router, gateHandler, middlewareCustom.RateLimitConfig{
		RequestsPerMinute: 100000,
	})

	return &TestServer{
		Server:   httptest.NewServer(router),
		States:   states,
		Attempts: attempts,
		Gate:     gate,
		Config:   gateConfig,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// PostJSON sends a JSON POST and decodes the JSON response into out when
// out is non-nil. Returns the response status code.
func (ts *TestServer) PostJSON(path string, body interface{}, out interface{}) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	resp, err := http.Post(ts.Server.URL+path, "application/json", &buf)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

// GetJSON sends a GET and decodes the JSON response into out when out is
// non-nil. Returns the response status code.
func (ts *TestServer) GetJSON(path string, out interface{}) (int, error) {
	resp, err := http.Get(ts.Server.URL + path)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}
