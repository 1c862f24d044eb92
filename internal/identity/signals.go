package identity

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/avct/uasurfer"
)

// Client hint headers carrying the environment signals. All are optional;
// a missing header contributes an empty string to the fingerprint.
const (
	HeaderDisplay  = "X-Client-Display"
	HeaderTimezone = "X-Client-Timezone"
	HeaderLanguage = "X-Client-Language"
	HeaderPlatform = "X-Client-Platform"
)

// Signals is the fixed-order tuple of environment characteristics that feeds
// the device fingerprint. Fields left empty simply weaken the fingerprint;
// they never cause an error.
type Signals struct {
	Display   string
	Timezone  string
	Language  string
	Platform  string
	UserAgent string
}

// SignalsFromRequest extracts fingerprint signals from client hint headers.
// Language falls back to the first Accept-Language tag, and platform falls
// back to the OS parsed from the User-Agent, so fingerprints retain some
// discriminating power for clients that send no explicit hints.
func SignalsFromRequest(r *http.Request) Signals {
	sig := Signals{
		Display:   r.Header.Get(HeaderDisplay),
		Timezone:  r.Header.Get(HeaderTimezone),
		Language:  r.Header.Get(HeaderLanguage),
		Platform:  r.Header.Get(HeaderPlatform),
		UserAgent: r.UserAgent(),
	}

	if sig.Language == "" {
		sig.Language = primaryLanguage(r.Header.Get("Accept-Language"))
	}
	if sig.Platform == "" {
		sig.Platform = platformFromUserAgent(sig.UserAgent)
	}

	return sig
}

// primaryLanguage returns the first tag of an Accept-Language value with its
// quality weight stripped, e.g. "en-US,en;q=0.9" -> "en-US".
func primaryLanguage(acceptLanguage string) string {
	if acceptLanguage == "" {
		return ""
	}
	tag := acceptLanguage
	if i := strings.IndexByte(tag, ','); i >= 0 {
		tag = tag[:i]
	}
	if i := strings.IndexByte(tag, ';'); i >= 0 {
		tag = tag[:i]
	}
	return strings.TrimSpace(tag)
}

// platformFromUserAgent derives an OS label from the User-Agent string.
// Returns empty when the agent is missing or unrecognizable so the signal
// stays empty rather than collapsing to a shared "unknown" bucket.
func platformFromUserAgent(userAgent string) string {
	if userAgent == "" {
		return ""
	}

	ua := uasurfer.Parse(userAgent)
	if ua.OS.Name == uasurfer.OSUnknown {
		return ""
	}

	return fmt.Sprintf("%s %d.%d", ua.OS.Name.String(), ua.OS.Version.Major, ua.OS.Version.Minor)
}
