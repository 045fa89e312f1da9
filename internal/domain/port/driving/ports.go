// Package driving defines the ports the core offers to its callers (the
// spreadsheet dialogs, the HTTP API and the CLI).
package driving

import (
	"context"

	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
)

// AuthPort covers credential entry and request authentication.
type AuthPort interface {
	StoreCredentials(ctx context.Context, req CredentialsRequest) StoreCredentialsResponse
	ClearCredentials(ctx context.Context) Envelope
	CredentialStatus(ctx context.Context) CredentialStatusResponse
	GetToken(ctx context.Context, forceRefresh bool) TokenResponse
	AuthenticateForUserAction(ctx context.Context) model.AuthResult
	AuthenticateForDataFetch(ctx context.Context) model.AuthResult
}

// FetchPort covers bulk retrieval of entities.
type FetchPort interface {
	Endpoints() []model.Endpoint
	Fetch(ctx context.Context, req FetchRequest) FetchResponse
}

// UploadPort covers entity submission and payload checks.
type UploadPort interface {
	Upload(ctx context.Context, req UploadRequest) UploadResponse
	ValidatePayload(endpoint string, payload map[string]any) ValidationResponse
	Template(endpoint string) (map[string]any, bool)
}

// MappingPort covers saved column mappings.
type MappingPort interface {
	SaveMapping(ctx context.Context, rec model.MappingRecord) MappingResponse
	GetMapping(ctx context.Context, sheet string) MappingResponse
	ListMappings(ctx context.Context) MappingListResponse
	DeleteMapping(ctx context.Context, sheet string) Envelope
}

// Core is every port together, as served by the HTTP API and the CLI.
type Core interface {
	AuthPort
	FetchPort
	UploadPort
	MappingPort
}
