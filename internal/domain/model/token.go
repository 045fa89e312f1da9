package model

import "time"

// TokenRecord is the cached bearer token for a document. It is bound to the
// credential version that was active when it was minted.
type TokenRecord struct {
	Token             string    `json:"token"`
	ExpiresAt         time.Time `json:"expiresAt"`
	ObtainedAt        time.Time `json:"obtainedAt"`
	CredentialVersion int       `json:"credentialVersion"`
}

// UsableAt reports whether the token is still live at now once the buffer is
// subtracted from its expiry. A token inside the buffer is treated as dead.
func (t TokenRecord) UsableAt(now time.Time, buffer time.Duration) bool {
	return now.Before(t.ExpiresAt.Add(-buffer))
}

// TokenResult is returned by the token manager for a usable token.
type TokenResult struct {
	Token             string    `json:"token"`
	ExpiresAt         time.Time `json:"expiresAt"`
	CredentialVersion int       `json:"credentialVersion"`
	Cached            bool      `json:"cached"`
	Generated         bool      `json:"generated"`
}

// TokenStatus summarizes the cached token without exposing it.
type TokenStatus struct {
	HasToken          bool      `json:"hasToken"`
	Valid             bool      `json:"valid"`
	ExpiresAt         time.Time `json:"expiresAt,omitzero"`
	CredentialVersion int       `json:"credentialVersion,omitempty"`
	CurrentVersion    int       `json:"currentVersion"`
	TokenPrefix       string    `json:"tokenPrefix,omitempty"`
}

// TokenPrefix returns a log-safe prefix of a bearer token.
func TokenPrefix(token string) string {
	const n = 8
	if len(token) <= n {
		return token[:len(token)/2] + "..."
	}
	return token[:n] + "..."
}

// LoginRequest is the signed body sent to the login endpoint.
type LoginRequest struct {
	WorkspaceID string `json:"workspaceId"`
	ClientID    string `json:"clientId"`
	Signature   string `json:"signature"`
}

// LoginResponse is the decoded login reply. ExpiresAt is whatever the server
// reported; token lifetime is computed locally and does not depend on it.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}
