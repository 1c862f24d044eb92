package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tmcfarland/authgate/internal/identity"
	"github.com/tmcfarland/authgate/internal/models"
	pkghttp "github.com/tmcfarland/authgate/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAttemptService implements AttemptServiceInterface for testing
type MockAttemptService struct {
	CheckRateLimitFunc func(ctx context.Context, email string, clientID models.ClientIdentity) models.RateLimitDecision
	RecordAttemptFunc  func(ctx context.Context, email string, clientID models.ClientIdentity, success bool)
	ClientIdentityFunc func(ctx context.Context, sig identity.Signals) models.ClientIdentity
}

func (m *MockAttemptService) CheckRateLimit(ctx context.Context, email string, clientID models.ClientIdentity) models.RateLimitDecision {
	if m.CheckRateLimitFunc == nil {
		return models.RateLimitDecision{Allowed: true}
	}
	return m.CheckRateLimitFunc(ctx, email, clientID)
}

func (m *MockAttemptService) RecordAttempt(ctx context.Context, email string, clientID models.ClientIdentity, success bool) {
	if m.RecordAttemptFunc == nil {
		return
	}
	m.RecordAttemptFunc(ctx, email, clientID, success)
}

func (m *MockAttemptService) ClientIdentity(ctx context.Context, sig identity.Signals) models.ClientIdentity {
	if m.ClientIdentityFunc == nil {
		return models.ClientIdentity{Value: "fp-test", Source: models.SourceFingerprint}
	}
	return m.ClientIdentityFunc(ctx, sig)
}
