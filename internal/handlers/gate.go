package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tmcfarland/authgate/internal/identity"
	"github.com/tmcfarland/authgate/internal/models"
	pkghttp "github.com/tmcfarland/authgate/pkg/http"
)

// AttemptServiceInterface defines the interface for gate orchestration logic
type AttemptServiceInterface interface {
	CheckRateLimit(ctx context.Context, email string, clientID models.ClientIdentity) models.RateLimitDecision
	RecordAttempt(ctx context.Context, email string, clientID models.ClientIdentity, success bool)
	ClientIdentity(ctx context.Context, sig identity.Signals) models.ClientIdentity
}

// GateHandler handles rate limit decision and attempt recording requests
type GateHandler struct {
	service AttemptServiceInterface
}

// NewGateHandler creates a new GateHandler
func NewGateHandler(service AttemptServiceInterface) *GateHandler {
	return &GateHandler{service: service}
}

// Request DTOs

// CheckRequest represents the request body for a rate limit check
type CheckRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Identity string `json:"identity" validate:"omitempty,max=256"`
}

// RecordRequest represents the request body for recording an attempt outcome
type RecordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Identity string `json:"identity" validate:"omitempty,max=256"`
	Success  bool   `json:"success"`
}

// RecordResponse acknowledges a recorded attempt
type RecordResponse struct {
	Status string `json:"status"`
}

// Check answers whether an authentication attempt may proceed
// @Summary Rate limit check
// @Accept json
// @Param request body CheckRequest true "Check request"
// @Produce json
// @Success 200 {object} models.RateLimitDecision
// @Failure 400 {object} ErrorResponse
// @Router /v1/gate/check [post]
func (h *GateHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	// Validate request
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	// Normalize email
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	clientID := h.clientIdentity(r, req.Identity)
	decision := h.service.CheckRateLimit(r.Context(), req.Email, clientID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(decision)
}

// Record stores the outcome of an authentication attempt
// @Summary Record attempt outcome
// @Accept json
// @Param request body RecordRequest true "Record request"
// @Produce json
// @Success 202 {object} RecordResponse
// @Failure 400 {object} ErrorResponse
// @Router /v1/gate/attempts [post]
func (h *GateHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	// Validate request
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	// Normalize email
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	clientID := h.clientIdentity(r, req.Identity)

	// Recording is best effort and never fails the caller.
	h.service.RecordAttempt(r.Context(), req.Email, clientID, req.Success)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(RecordResponse{Status: "recorded"})
}

// Identity resolves the caller's client identity from request signals
// @Summary Resolve client identity
// @Produce json
// @Success 200 {object} models.ClientIdentity
// @Router /v1/identity [get]
func (h *GateHandler) Identity(w http.ResponseWriter, r *http.Request) {
	clientID := h.service.ClientIdentity(r.Context(), identity.SignalsFromRequest(r))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(clientID)
}

// clientIdentity prefers the caller-supplied identity and falls back to
// resolving one from the request's own signals. Caller-supplied values carry
// no source tier; the resolver was not involved in producing them.
func (h *GateHandler) clientIdentity(r *http.Request, supplied string) models.ClientIdentity {
	if v := strings.TrimSpace(supplied); v != "" {
		return models.ClientIdentity{Value: v}
	}
	return h.service.ClientIdentity(r.Context(), identity.SignalsFromRequest(r))
}
