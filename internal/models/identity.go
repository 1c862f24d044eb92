package models

// IdentitySource records which resolver tier produced a client identity.
type IdentitySource string

const (
	SourceNetworkEdge IdentitySource = "network_edge"
	SourcePublicAPI   IdentitySource = "public_api"
	SourceFingerprint IdentitySource = "fingerprint"
	SourceUnknown     IdentitySource = "unknown"
)

// UnknownClientID is the fixed sentinel returned when every resolver tier
// fails to produce a usable value. Distinguishable from real identifiers
// so downstream consumers can treat unidentified clients specially.
const UnknownClientID = "unknown-client"

// ClientIdentity is the best-effort identifier for the machine behind an
// authentication attempt. Value is never empty.
type ClientIdentity struct {
	Value  string         `json:"identity"`
	Source IdentitySource `json:"source"`
}

// Unknown returns the sentinel identity used when resolution exhausts
// every tier.
func Unknown() ClientIdentity {
	return ClientIdentity{Value: UnknownClientID, Source: SourceUnknown}
}

// IsUnknown reports whether the identity is the fallback sentinel.
func (c ClientIdentity) IsUnknown() bool {
	return c.Source == SourceUnknown
}
