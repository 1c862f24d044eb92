package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tmcfarland/authgate/internal/identity"
)

func TestFingerprint_DeterministicForIdenticalSignals(t *testing.T) {
	sig := identity.Signals{
		Display:   "1920x1080x24",
		Timezone:  "America/Denver",
		Language:  "en-US",
		Platform:  "OSWindows 10.0",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
	}

	first := identity.Fingerprint(sig)
	second := identity.Fingerprint(sig)

	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestFingerprint_ChangesWhenOneSignalChanges(t *testing.T) {
	base := identity.Signals{
		Display:   "1920x1080x24",
		Timezone:  "America/Denver",
		Language:  "en-US",
		Platform:  "OSWindows 10.0",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
	}
	shifted := base
	shifted.Timezone = "Europe/Berlin"

	assert.NotEqual(t, identity.Fingerprint(base), identity.Fingerprint(shifted))
}

func TestFingerprint_EmptySignalsStillProduceValue(t *testing.T) {
	fp := identity.Fingerprint(identity.Signals{})

	// Hash of the bare separator string "||||".
	assert.Equal(t, "3a3f00", fp)
}

func TestFingerprint_OutputIsLowercaseHex(t *testing.T) {
	sig := identity.Signals{
		Display:   "2560x1440x24",
		Timezone:  "Asia/Tokyo",
		Language:  "ja-JP",
		Platform:  "OSMacOSX 14.3",
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
	}

	fp := identity.Fingerprint(sig)

	assert.Regexp(t, "^[0-9a-f]+$", fp)
}
