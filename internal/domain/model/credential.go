package model

import (
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Minimum lengths enforced on stored credential fields (after trimming).
const (
	MinWorkspaceIDLen  = 3
	MinClientIDLen     = 10
	MinClientSecretLen = 10
)

// CredentialRecord is the versioned Zotok credential set persisted for a document.
// Version increases by one each time any identity field changes.
type CredentialRecord struct {
	WorkspaceID  string    `json:"workspaceId"`
	ClientID     string    `json:"clientId"`
	ClientSecret string    `json:"clientSecret"`
	StoredAt     time.Time `json:"storedAt"`
	Version      int       `json:"version"`
}

// Trimmed returns a copy with surrounding whitespace removed from the identity fields.
func (r CredentialRecord) Trimmed() CredentialRecord {
	r.WorkspaceID = strings.TrimSpace(r.WorkspaceID)
	r.ClientID = strings.TrimSpace(r.ClientID)
	r.ClientSecret = strings.TrimSpace(r.ClientSecret)
	return r
}

// SameIdentity reports whether r and other carry the same workspace, client ID
// and secret once trimmed. StoredAt and Version are ignored.
func (r CredentialRecord) SameIdentity(other CredentialRecord) bool {
	a, b := r.Trimmed(), other.Trimmed()
	return a.WorkspaceID == b.WorkspaceID &&
		a.ClientID == b.ClientID &&
		a.ClientSecret == b.ClientSecret
}

// Validate checks the trimmed fields against the required minimum lengths and
// returns every violated rule, not just the first.
func (r CredentialRecord) Validate() []string {
	t := r.Trimmed()
	var violations []string
	check := func(name, value string, minLen int) {
		switch {
		case value == "":
			violations = append(violations, name+" is required")
		case len(value) < minLen:
			violations = append(violations, name+" must be at least "+strconv.Itoa(minLen)+" characters")
		}
	}
	check("workspaceId", t.WorkspaceID, MinWorkspaceIDLen)
	check("clientId", t.ClientID, MinClientIDLen)
	check("clientSecret", t.ClientSecret, MinClientSecretLen)
	return violations
}

// LogValue keeps the client secret out of structured logs.
func (r CredentialRecord) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("workspace_id", r.WorkspaceID),
		slog.String("client_id", r.ClientID),
		slog.Bool("secret_present", r.ClientSecret != ""),
		slog.Int("secret_len", len(r.ClientSecret)),
		slog.Int("version", r.Version),
	)
}

// StoreResult describes the outcome of persisting a credential set.
type StoreResult struct {
	Version           int  `json:"version"`
	PreviousVersion   int  `json:"previousVersion"`
	CredentialChanged bool `json:"credentialChanged"`
}
