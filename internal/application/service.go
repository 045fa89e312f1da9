package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
	"github.com/ericfisherdev/zotoksheets/internal/domain/port/driven"
	"github.com/ericfisherdev/zotoksheets/internal/domain/port/driving"
	"github.com/ericfisherdev/zotoksheets/internal/metrics"
)

// Compile-time checks that Service implements every driving port.
var (
	_ driving.AuthPort    = (*Service)(nil)
	_ driving.FetchPort   = (*Service)(nil)
	_ driving.UploadPort  = (*Service)(nil)
	_ driving.MappingPort = (*Service)(nil)
)

// Options configures the core assembled by Wire.
type Options struct {
	Cache              CacheTTLs
	Token              TokenConfig
	Fetch              FetchConfig
	UploadRetry        RetryPolicy
	ValidationEndpoint string
	Production         bool
	AllowProdMutations bool
}

// Service implements the driving ports on top of the core services and turns
// their errors into response envelopes.
type Service struct {
	cache    *VolatileCache
	creds    *CredentialService
	tokens   *TokenManager
	gateway  *AuthGateway
	fetcher  *Fetcher
	uploader *Uploader
	mappings *MappingService
	catalog  model.Catalog

	production         bool
	allowProdMutations bool
	logger             *slog.Logger
}

// Wire assembles the core for one document store and API client.
func Wire(
	store driven.KeyValueStore,
	api driven.ZotokAPI,
	catalog model.Catalog,
	opts Options,
	m *metrics.Metrics,
	logger *slog.Logger,
) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	probe, err := catalog.Lookup(opts.ValidationEndpoint)
	if err != nil {
		return nil, fmt.Errorf("validation endpoint: %w", err)
	}

	cache := NewVolatileCache(opts.Cache, nil)
	creds := NewCredentialService(store, cache, logger)
	tokens := NewTokenManager(creds, store, api, cache, opts.Token, m, logger)

	return &Service{
		cache:              cache,
		creds:              creds,
		tokens:             tokens,
		gateway:            NewAuthGateway(tokens, api, probe, cache, logger),
		fetcher:            NewFetcher(api, catalog, opts.Fetch, m, logger),
		uploader:           NewUploader(api, catalog, opts.UploadRetry, m, logger),
		mappings:           NewMappingService(store, catalog, logger),
		catalog:            catalog,
		production:         opts.Production,
		allowProdMutations: opts.AllowProdMutations,
		logger:             logger,
	}, nil
}

// SweepCache evicts expired volatile cache entries.
func (s *Service) SweepCache() int {
	return s.cache.Sweep()
}

// StoreCredentials validates and stores a credential set.
func (s *Service) StoreCredentials(ctx context.Context, req driving.CredentialsRequest) driving.StoreCredentialsResponse {
	res, err := s.creds.Store(ctx, req.WorkspaceID, req.ClientID, req.ClientSecret)
	if err != nil {
		return driving.StoreCredentialsResponse{Envelope: errorEnvelope(err)}
	}
	return driving.StoreCredentialsResponse{
		Envelope:    driving.Envelope{Success: true, Message: "credentials saved"},
		StoreResult: res,
	}
}

// ClearCredentials removes credentials, the cached token and all caches.
func (s *Service) ClearCredentials(ctx context.Context) driving.Envelope {
	if err := s.creds.Clear(ctx); err != nil {
		return errorEnvelope(err)
	}
	return driving.Envelope{Success: true, Message: "credentials cleared"}
}

// CredentialStatus reports the stored credentials and token state.
func (s *Service) CredentialStatus(ctx context.Context) driving.CredentialStatusResponse {
	rec, err := s.creds.Get(ctx)
	if err != nil {
		return driving.CredentialStatusResponse{Envelope: errorEnvelope(err)}
	}
	tok, err := s.tokens.Status(ctx)
	if err != nil {
		return driving.CredentialStatusResponse{Envelope: errorEnvelope(err)}
	}

	resp := driving.CredentialStatusResponse{
		Envelope: driving.Envelope{Success: true},
		Token:    tok,
	}
	if rec != nil {
		resp.HasCredentials = true
		resp.WorkspaceID = rec.WorkspaceID
		resp.ClientID = rec.ClientID
		resp.Version = rec.Version
		resp.StoredAt = rec.StoredAt
	}
	return resp
}

// GetToken returns a usable token, minting one when needed or forced.
func (s *Service) GetToken(ctx context.Context, forceRefresh bool) driving.TokenResponse {
	tok, err := s.tokens.GetToken(ctx, forceRefresh)
	if err != nil {
		return driving.TokenResponse{Envelope: errorEnvelope(err)}
	}
	return driving.TokenResponse{
		Envelope:          driving.Envelope{Success: true},
		Token:             tok.Token,
		ExpiresAt:         tok.ExpiresAt,
		CredentialVersion: tok.CredentialVersion,
		Cached:            tok.Cached,
		Generated:         tok.Generated,
	}
}

// AuthenticateForUserAction obtains and live-validates a token.
func (s *Service) AuthenticateForUserAction(ctx context.Context) model.AuthResult {
	return s.gateway.AuthenticateForUserAction(ctx)
}

// AuthenticateForDataFetch obtains a token without validating it.
func (s *Service) AuthenticateForDataFetch(ctx context.Context) model.AuthResult {
	return s.gateway.AuthenticateForDataFetch(ctx)
}

// Endpoints lists the endpoint catalog.
func (s *Service) Endpoints() []model.Endpoint {
	return s.catalog.Endpoints()
}

// Fetch authenticates on the fast path and retrieves every record of an endpoint.
func (s *Service) Fetch(ctx context.Context, req driving.FetchRequest) driving.FetchResponse {
	opID := uuid.NewString()
	logger := s.logger.With("op_id", opID, "endpoint", req.Endpoint)

	ep, err := s.catalog.Lookup(req.Endpoint)
	if err == nil {
		_, err = ep.ResolvePeriod(req.Period)
	}
	if err != nil {
		return driving.FetchResponse{Envelope: errorEnvelope(err), OperationID: opID}
	}

	auth := s.gateway.AuthenticateForDataFetch(ctx)
	if !auth.Success {
		return driving.FetchResponse{Envelope: authEnvelope(auth), OperationID: opID}
	}

	logger.Info("fetch started", "period", req.Period)
	res, err := s.fetcher.Fetch(ctx, auth.Token, req.Endpoint, req.Period, req.Budgets)
	if err != nil {
		logger.Error("fetch failed", "error", err)
		return driving.FetchResponse{Envelope: errorEnvelope(err), OperationID: opID}
	}
	return driving.FetchResponse{
		Envelope:        driving.Envelope{Success: true},
		Data:            res.Records,
		RecordCount:     res.RecordCount,
		PagesProcessed:  res.PagesProcessed,
		ExecutionTimeMs: res.ExecutionTime.Milliseconds(),
		StopReason:      res.StopReason,
		OperationID:     opID,
	}
}

// Upload checks the mutation guard and payload schema, then submits the payload.
func (s *Service) Upload(ctx context.Context, req driving.UploadRequest) driving.UploadResponse {
	opID := uuid.NewString()
	logger := s.logger.With("op_id", opID, "endpoint", req.Endpoint)
	start := time.Now()

	ep, err := s.catalog.Lookup(req.Endpoint)
	if err != nil {
		return driving.UploadResponse{Envelope: errorEnvelope(err), OperationID: opID}
	}
	if !ep.SupportsUpload {
		err := model.NewValidationError("upload", fmt.Sprintf("endpoint %q does not support upload", ep.Key))
		return driving.UploadResponse{Envelope: errorEnvelope(err), OperationID: opID}
	}
	if s.production && !s.allowProdMutations {
		logger.Warn("upload blocked in production")
		return driving.UploadResponse{
			Envelope: driving.Envelope{
				Message:   "production mutations are blocked; use the qa environment or set ZOTOK_ALLOW_PROD_MUTATIONS",
				ErrorType: driving.ErrorTypeMutationBlocked,
			},
			OperationID: opID,
		}
	}
	if req.Payload == nil {
		err := model.NewValidationError("upload", "payload is required")
		return driving.UploadResponse{Envelope: errorEnvelope(err), OperationID: opID}
	}
	if violations := ep.ValidatePayload(req.Payload); len(violations) > 0 {
		err := model.NewValidationError("upload", violations...)
		return driving.UploadResponse{Envelope: errorEnvelope(err), OperationID: opID}
	}

	auth := s.gateway.AuthenticateForDataFetch(ctx)
	if !auth.Success {
		return driving.UploadResponse{Envelope: authEnvelope(auth), OperationID: opID}
	}

	res, err := s.uploader.Upload(ctx, auth.Token, ep.Key, req.Payload)
	if err != nil {
		logger.Error("upload failed", "error", err)
		return driving.UploadResponse{
			Envelope:        errorEnvelope(err),
			ExecutionTimeMs: time.Since(start).Milliseconds(),
			OperationID:     opID,
		}
	}
	return driving.UploadResponse{
		Envelope:        driving.Envelope{Success: true, Message: res.Message},
		Data:            res.Data,
		Attempts:        res.Attempts,
		ExecutionTimeMs: res.ExecutionTime.Milliseconds(),
		OperationID:     opID,
	}
}

// ValidatePayload checks payload against the endpoint's upload schema
// without sending it.
func (s *Service) ValidatePayload(endpoint string, payload map[string]any) driving.ValidationResponse {
	ep, err := s.catalog.Lookup(endpoint)
	if err != nil {
		return driving.ValidationResponse{Errors: []string{err.Error()}}
	}
	if !ep.SupportsUpload {
		return driving.ValidationResponse{Errors: []string{fmt.Sprintf("endpoint %q does not support upload", ep.Key)}}
	}
	errs := ep.ValidatePayload(payload)
	if errs == nil {
		errs = []string{}
	}
	return driving.ValidationResponse{Valid: len(errs) == 0, Errors: errs}
}

// Template returns a sample payload for an uploadable endpoint.
func (s *Service) Template(endpoint string) (map[string]any, bool) {
	ep, ok := s.catalog[endpoint]
	if !ok || !ep.SupportsUpload {
		return nil, false
	}
	return ep.Template(), true
}

// SaveMapping stores a column mapping for a sheet.
func (s *Service) SaveMapping(ctx context.Context, rec model.MappingRecord) driving.MappingResponse {
	saved, err := s.mappings.Save(ctx, rec)
	if err != nil {
		return driving.MappingResponse{Envelope: errorEnvelope(err)}
	}
	return driving.MappingResponse{Envelope: driving.Envelope{Success: true}, Mapping: saved}
}

// GetMapping returns the saved mapping for a sheet.
func (s *Service) GetMapping(ctx context.Context, sheet string) driving.MappingResponse {
	rec, err := s.mappings.Get(ctx, sheet)
	if err != nil {
		return driving.MappingResponse{Envelope: errorEnvelope(err)}
	}
	if rec == nil {
		return driving.MappingResponse{Envelope: driving.Envelope{
			Message:   fmt.Sprintf("no mapping saved for sheet %q", sheet),
			ErrorType: driving.ErrorTypeNotFound,
		}}
	}
	return driving.MappingResponse{Envelope: driving.Envelope{Success: true}, Mapping: rec}
}

// ListMappings returns every saved mapping.
func (s *Service) ListMappings(ctx context.Context) driving.MappingListResponse {
	recs, err := s.mappings.List(ctx)
	if err != nil {
		return driving.MappingListResponse{Envelope: errorEnvelope(err)}
	}
	return driving.MappingListResponse{Envelope: driving.Envelope{Success: true}, Mappings: recs}
}

// DeleteMapping removes the mapping for a sheet.
func (s *Service) DeleteMapping(ctx context.Context, sheet string) driving.Envelope {
	if err := s.mappings.Delete(ctx, sheet); err != nil {
		return errorEnvelope(err)
	}
	return driving.Envelope{Success: true, Message: "mapping deleted"}
}

func errorEnvelope(err error) driving.Envelope {
	env := driving.Envelope{Message: err.Error(), ErrorType: driving.ErrorTypeInternal}
	var e *model.Error
	if errors.As(err, &e) {
		env.ErrorType = string(e.Kind)
		env.NeedsCredentials = e.NeedsCredentials
		env.Violations = e.Violations
	}
	return env
}

func authEnvelope(res model.AuthResult) driving.Envelope {
	return driving.Envelope{
		Message:          res.Message,
		NeedsCredentials: res.NeedsCredentials,
		ErrorType:        string(res.ErrorType),
	}
}
