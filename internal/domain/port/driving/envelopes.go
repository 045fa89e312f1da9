package driving

import (
	"time"

	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
)

// Error types reported by the facade in addition to the model error kinds.
const (
	ErrorTypeNotFound        = "NOT_FOUND"
	ErrorTypeMutationBlocked = "MUTATION_BLOCKED"
	ErrorTypeInternal        = "INTERNAL_ERROR"
)

// Envelope is the common success/failure shape every port response embeds.
type Envelope struct {
	Success          bool     `json:"success"`
	Message          string   `json:"message,omitempty"`
	NeedsCredentials bool     `json:"needsCredentials,omitempty"`
	ErrorType        string   `json:"errorType,omitempty"`
	Violations       []string `json:"violations,omitempty"`
}

// CredentialsRequest carries credential fields as entered by the user.
type CredentialsRequest struct {
	WorkspaceID  string `json:"workspaceId"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// StoreCredentialsResponse reports the version assigned to a stored credential set.
type StoreCredentialsResponse struct {
	Envelope
	model.StoreResult
}

// CredentialStatusResponse describes stored credentials without the secret.
type CredentialStatusResponse struct {
	Envelope
	HasCredentials bool              `json:"hasCredentials"`
	WorkspaceID    string            `json:"workspaceId,omitempty"`
	ClientID       string            `json:"clientId,omitempty"`
	Version        int               `json:"version,omitempty"`
	StoredAt       time.Time         `json:"storedAt,omitzero"`
	Token          model.TokenStatus `json:"token"`
}

// TokenResponse carries a usable bearer token.
type TokenResponse struct {
	Envelope
	Token             string    `json:"token,omitempty"`
	ExpiresAt         time.Time `json:"expiresAt,omitzero"`
	CredentialVersion int       `json:"credentialVersion,omitempty"`
	Cached            bool      `json:"cached"`
	Generated         bool      `json:"generated"`
}

// FetchRequest asks for every record of an endpoint within the given budgets.
type FetchRequest struct {
	Endpoint string             `json:"endpoint"`
	Period   string             `json:"period,omitempty"`
	Budgets  model.FetchBudgets `json:"budgets"`
}

// FetchResponse carries the assembled records of a fetch.
type FetchResponse struct {
	Envelope
	Data            []model.Record   `json:"data,omitempty"`
	RecordCount     int              `json:"recordCount"`
	PagesProcessed  int              `json:"pagesProcessed"`
	ExecutionTimeMs int64            `json:"executionTimeMs"`
	StopReason      model.StopReason `json:"stopReason,omitempty"`
	OperationID     string           `json:"operationId,omitempty"`
}

// UploadRequest submits an already wrapped payload ({"customers": [...]}).
type UploadRequest struct {
	Endpoint string         `json:"endpoint"`
	Payload  map[string]any `json:"payload"`
}

// UploadResponse carries the server reply to an upload.
type UploadResponse struct {
	Envelope
	Data            map[string]any `json:"data,omitempty"`
	Attempts        int            `json:"attempts"`
	ExecutionTimeMs int64          `json:"executionTimeMs"`
	OperationID     string         `json:"operationId,omitempty"`
}

// ValidationResponse lists every problem found in a payload.
type ValidationResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// MappingResponse carries one saved mapping.
type MappingResponse struct {
	Envelope
	Mapping *model.MappingRecord `json:"mapping,omitempty"`
}

// MappingListResponse carries every saved mapping.
type MappingListResponse struct {
	Envelope
	Mappings []model.MappingRecord `json:"mappings"`
}
