package middleware

import "net/http"

// SecurityHeadersConfig holds security headers configuration
type SecurityHeadersConfig struct {
	Env string
}

// SecurityHeaders returns a middleware that adds security headers to all
// responses. The gate serves JSON only, so the browser-document headers
// reduce to MIME sniffing protection, frame denial, and cache suppression;
// rate limit decisions must never be served stale.
func SecurityHeaders(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// X-Content-Type-Options: MIME sniffing prevention
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// X-Frame-Options: API responses have no business inside frames
			w.Header().Set("X-Frame-Options", "DENY")

			// Cache-Control: decisions and identities are moment-in-time answers
			w.Header().Set("Cache-Control", "no-store")

			// Referrer-Policy: Controls how much referrer information is shared
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// Strict-Transport-Security: HTTPS enforcement (HSTS)
			// Only send for HTTPS connections in production
			if config.Env == "production" && (r.Header.Get("X-Forwarded-Proto") == "https" || r.URL.Scheme == "https") {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
