package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tmcfarland/authgate/internal/models"
)

// FingerprintPrefix tags fingerprint-derived identities so they are never
// mistaken for network addresses downstream.
const FingerprintPrefix = "fp-"

// ResolverConfig holds the endpoints and timeouts for the network tiers.
// An empty URL disables that tier; resolution falls through to the next one.
type ResolverConfig struct {
	EdgeURL     string
	EdgeTimeout time.Duration
	EchoURL     string
	EchoTimeout time.Duration
}

// Resolver produces a best-effort client identity through an ordered
// fallback chain: first-party edge lookup, public echo service, device
// fingerprint, and finally a fixed sentinel. Resolve never fails and never
// returns an empty identity.
type Resolver struct {
	config ResolverConfig
	client *http.Client
	tokens *ServiceTokenSource
	logger *slog.Logger
}

// NewResolver creates a Resolver. The token source is optional; when present
// its tokens authenticate requests to the first-party edge endpoint. The
// public echo tier never sends credentials.
func NewResolver(config ResolverConfig, client *http.Client, tokens *ServiceTokenSource, logger *slog.Logger) *Resolver {
	if client == nil {
		client = &http.Client{}
	}
	return &Resolver{
		config: config,
		client: client,
		tokens: tokens,
		logger: logger,
	}
}

// Resolve walks the tier chain and returns the first usable identity.
// Each network tier gets exactly one attempt under its own deadline, so
// total latency is bounded by the sum of the configured timeouts. Identity
// is resolved fresh on every call; nothing is cached between attempts.
func (r *Resolver) Resolve(ctx context.Context, sig Signals) models.ClientIdentity {
	if r.config.EdgeURL != "" {
		ip, err := r.lookupIP(ctx, r.config.EdgeURL, r.config.EdgeTimeout, true)
		if err == nil {
			return models.ClientIdentity{Value: ip, Source: models.SourceNetworkEdge}
		}
		r.logger.Debug("edge identity lookup failed, falling back",
			slog.Any("error", err))
	}

	if r.config.EchoURL != "" {
		ip, err := r.lookupIP(ctx, r.config.EchoURL, r.config.EchoTimeout, false)
		if err == nil {
			return models.ClientIdentity{Value: ip, Source: models.SourcePublicAPI}
		}
		r.logger.Debug("public identity lookup failed, falling back",
			slog.Any("error", err))
	}

	if fp := Fingerprint(sig); fp != "" {
		return models.ClientIdentity{Value: FingerprintPrefix + fp, Source: models.SourceFingerprint}
	}

	return models.Unknown()
}

// ipResponse is the JSON body both network tiers return.
type ipResponse struct {
	IP string `json:"ip"`
}

// lookupIP performs a single bounded GET against an IP echo endpoint.
// Timeouts, transport failures, non-2xx statuses, and malformed bodies all
// surface as errors for the caller to swallow while advancing the chain.
func (r *Resolver) lookupIP(ctx context.Context, url string, timeout time.Duration, authenticated bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build identity request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if authenticated && r.tokens != nil {
		token, err := r.tokens.Token()
		if err != nil {
			return "", fmt.Errorf("failed to mint service token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("identity endpoint returned status %d", resp.StatusCode)
	}

	var body ipResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode identity response: %w", err)
	}
	if body.IP == "" {
		return "", fmt.Errorf("identity response missing ip field")
	}

	return body.IP, nil
}
