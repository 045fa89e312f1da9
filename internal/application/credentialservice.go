package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
	"github.com/ericfisherdev/zotoksheets/internal/domain/port/driven"
)

// CredentialService owns the versioned credential record and the cache
// invalidation cascade that follows a credential change.
type CredentialService struct {
	store  driven.KeyValueStore
	cache  *VolatileCache
	logger *slog.Logger
	now    func() time.Time
}

// NewCredentialService creates a CredentialService. logger may be nil.
func NewCredentialService(store driven.KeyValueStore, cache *VolatileCache, logger *slog.Logger) *CredentialService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialService{
		store:  store,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// Store validates and persists a credential set. The version is bumped only
// when an identity field differs from the stored record. A change deletes the
// cached token and clears every volatile cache.
func (s *CredentialService) Store(ctx context.Context, workspaceID, clientID, clientSecret string) (model.StoreResult, error) {
	rec := model.CredentialRecord{
		WorkspaceID:  workspaceID,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}.Trimmed()

	if violations := rec.Validate(); len(violations) > 0 {
		return model.StoreResult{}, model.NewValidationError("store credentials", violations...)
	}

	existing, err := s.load(ctx)
	if err != nil {
		return model.StoreResult{}, err
	}

	result := model.StoreResult{CredentialChanged: true}
	if existing != nil {
		result.PreviousVersion = existing.Version
		result.CredentialChanged = !existing.SameIdentity(rec)
	}
	result.Version = result.PreviousVersion
	if result.CredentialChanged {
		result.Version++
	}

	rec.Version = result.Version
	rec.StoredAt = s.now().UTC()
	data, err := json.Marshal(rec)
	if err != nil {
		return model.StoreResult{}, fmt.Errorf("encode credentials: %w", err)
	}
	if err := s.store.Set(ctx, model.KeyCredentials, string(data)); err != nil {
		return model.StoreResult{}, fmt.Errorf("persist credentials: %w", err)
	}

	if result.CredentialChanged {
		if err := s.store.Delete(ctx, model.KeyCachedToken); err != nil {
			return model.StoreResult{}, fmt.Errorf("delete cached token: %w", err)
		}
		s.cache.Clear()
		s.logger.Info("credentials changed",
			"previous_version", result.PreviousVersion,
			"version", result.Version,
		)
	}
	s.cache.SetCredentials(rec)

	s.logger.Debug("credentials stored", "credentials", rec)
	return result, nil
}

// Get returns the current credential record, or nil when none is stored.
func (s *CredentialService) Get(ctx context.Context) (*model.CredentialRecord, error) {
	if rec, ok := s.cache.Credentials(); ok {
		return &rec, nil
	}
	rec, err := s.load(ctx)
	if err != nil || rec == nil {
		return nil, err
	}
	s.cache.SetCredentials(*rec)
	return rec, nil
}

// Has reports whether a credential record is stored.
func (s *CredentialService) Has(ctx context.Context) (bool, error) {
	rec, err := s.Get(ctx)
	return rec != nil, err
}

// Clear removes the credential record and the cached token and drops every
// volatile cache. Both deletes are attempted even if one fails.
func (s *CredentialService) Clear(ctx context.Context) error {
	s.cache.Clear()
	err := errors.Join(
		s.store.Delete(ctx, model.KeyCredentials),
		s.store.Delete(ctx, model.KeyCachedToken),
	)
	if err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	s.logger.Info("credentials cleared")
	return nil
}

// CurrentVersion returns the active credential version. With no credentials
// stored it returns 1, the version a first credential set receives.
func (s *CredentialService) CurrentVersion(ctx context.Context) (int, error) {
	rec, err := s.Get(ctx)
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return 1, nil
	}
	return rec.Version, nil
}

// load reads the persisted record. An unparseable record is treated as absent.
func (s *CredentialService) load(ctx context.Context) (*model.CredentialRecord, error) {
	raw, ok, err := s.store.Get(ctx, model.KeyCredentials)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var rec model.CredentialRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.logger.Warn("stored credentials are unreadable, treating as absent", "error", err)
		return nil, nil
	}
	return &rec, nil
}
