package identity_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tmcfarland/authgate/internal/identity"
)

func TestSignalsFromRequest_ReadsHintHeaders(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/identity", nil)
	r.Header.Set(identity.HeaderDisplay, "1920x1080x24")
	r.Header.Set(identity.HeaderTimezone, "America/Denver")
	r.Header.Set(identity.HeaderLanguage, "en-US")
	r.Header.Set(identity.HeaderPlatform, "Win32")
	r.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")

	sig := identity.SignalsFromRequest(r)

	assert.Equal(t, "1920x1080x24", sig.Display)
	assert.Equal(t, "America/Denver", sig.Timezone)
	assert.Equal(t, "en-US", sig.Language)
	assert.Equal(t, "Win32", sig.Platform)
	assert.Equal(t, "Mozilla/5.0 (Windows NT 10.0; Win64; x64)", sig.UserAgent)
}

func TestSignalsFromRequest_LanguageFallsBackToAcceptLanguage(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/identity", nil)
	r.Header.Set("Accept-Language", "en-US,en;q=0.9,de;q=0.8")

	sig := identity.SignalsFromRequest(r)

	assert.Equal(t, "en-US", sig.Language)
}

func TestSignalsFromRequest_PlatformDerivedFromUserAgent(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/identity", nil)
	r.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	sig := identity.SignalsFromRequest(r)

	assert.Contains(t, sig.Platform, "Windows")
}

func TestSignalsFromRequest_MissingHeadersYieldEmptySignals(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/identity", nil)
	r.Header.Del("User-Agent")

	sig := identity.SignalsFromRequest(r)

	assert.Empty(t, sig.Display)
	assert.Empty(t, sig.Timezone)
	assert.Empty(t, sig.Language)
	assert.Empty(t, sig.Platform)
	assert.Empty(t, sig.UserAgent)
}
