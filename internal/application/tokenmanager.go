package application

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
	"github.com/ericfisherdev/zotoksheets/internal/domain/port/driven"
	"github.com/ericfisherdev/zotoksheets/internal/metrics"
)

// TokenConfig controls token lifetime. Buffer is subtracted from the expiry
// when deciding whether a cached token is still usable.
type TokenConfig struct {
	Duration time.Duration
	Buffer   time.Duration
}

// TokenManager mints bearer tokens through the login exchange and caches
// them in the key/value store, bound to the credential version they were
// minted under.
type TokenManager struct {
	creds   *CredentialService
	store   driven.KeyValueStore
	api     driven.ZotokAPI
	cache   *VolatileCache
	cfg     TokenConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewTokenManager creates a TokenManager. m and logger may be nil.
func NewTokenManager(
	creds *CredentialService,
	store driven.KeyValueStore,
	api driven.ZotokAPI,
	cache *VolatileCache,
	cfg TokenConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *TokenManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenManager{
		creds:   creds,
		store:   store,
		api:     api,
		cache:   cache,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// GetToken returns a usable bearer token. Unless force is set, a cached token
// minted under the current credential version and outside the expiry buffer
// is returned as is; anything else is discarded and a new token is minted.
func (m *TokenManager) GetToken(ctx context.Context, force bool) (*model.TokenResult, error) {
	creds, err := m.creds.Get(ctx)
	if err != nil {
		m.metrics.IncToken("failed")
		return nil, fmt.Errorf("get token: %w", err)
	}
	if creds == nil {
		m.metrics.IncToken("failed")
		return nil, model.NewAuthError("get token", model.ErrNoCredentials)
	}
	current, err := m.creds.CurrentVersion(ctx)
	if err != nil {
		m.metrics.IncToken("failed")
		return nil, fmt.Errorf("get token: %w", err)
	}

	if !force {
		if rec := m.cachedToken(ctx, current); rec != nil {
			m.metrics.IncToken("cached")
			return &model.TokenResult{
				Token:             rec.Token,
				ExpiresAt:         rec.ExpiresAt,
				CredentialVersion: rec.CredentialVersion,
				Cached:            true,
			}, nil
		}
	}

	rec, err := m.generate(ctx, *creds, current)
	if err != nil {
		m.metrics.IncToken("failed")
		return nil, err
	}
	m.metrics.IncToken("generated")
	return &model.TokenResult{
		Token:             rec.Token,
		ExpiresAt:         rec.ExpiresAt,
		CredentialVersion: rec.CredentialVersion,
		Generated:         true,
	}, nil
}

// InvalidateCache deletes the persisted token. Credentials are untouched.
func (m *TokenManager) InvalidateCache(ctx context.Context) error {
	m.cache.InvalidateTokenStatus()
	if err := m.store.Delete(ctx, model.KeyCachedToken); err != nil {
		return fmt.Errorf("invalidate token: %w", err)
	}
	return nil
}

// Status summarizes the persisted token without minting one. The summary is
// cached for the token status TTL.
func (m *TokenManager) Status(ctx context.Context) (model.TokenStatus, error) {
	if st, ok := m.cache.TokenStatus(); ok {
		return st, nil
	}

	current, err := m.creds.CurrentVersion(ctx)
	if err != nil {
		return model.TokenStatus{}, fmt.Errorf("token status: %w", err)
	}
	st := model.TokenStatus{CurrentVersion: current}

	rec, err := m.readToken(ctx)
	if err != nil {
		return model.TokenStatus{}, fmt.Errorf("token status: %w", err)
	}
	if rec != nil {
		st.HasToken = true
		st.ExpiresAt = rec.ExpiresAt
		st.CredentialVersion = rec.CredentialVersion
		st.TokenPrefix = model.TokenPrefix(rec.Token)
		st.Valid = rec.CredentialVersion == current && rec.UsableAt(m.now(), m.cfg.Buffer)
	}

	m.cache.SetTokenStatus(st)
	return st, nil
}

// cachedToken returns the persisted token if it is bound to version and not
// inside the expiry buffer. A stale record is deleted.
func (m *TokenManager) cachedToken(ctx context.Context, version int) *model.TokenRecord {
	rec, err := m.readToken(ctx)
	if err != nil {
		m.logger.Warn("cached token unreadable, regenerating", "error", err)
		m.discardToken(ctx)
		return nil
	}
	if rec == nil {
		return nil
	}

	if rec.CredentialVersion != version {
		m.logger.Info("cached token bound to stale credentials, regenerating",
			"error", &model.Error{Kind: model.KindTokenMismatch, Op: "cached token"},
			"token_version", rec.CredentialVersion,
			"current_version", version,
		)
		m.discardToken(ctx)
		return nil
	}
	if !rec.UsableAt(m.now(), m.cfg.Buffer) {
		m.logger.Info("cached token expired, regenerating",
			"token_prefix", model.TokenPrefix(rec.Token),
			"expires_at", rec.ExpiresAt,
		)
		m.discardToken(ctx)
		return nil
	}
	return rec
}

func (m *TokenManager) readToken(ctx context.Context) (*model.TokenRecord, error) {
	raw, ok, err := m.store.Get(ctx, model.KeyCachedToken)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var rec model.TokenRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &rec, nil
}

func (m *TokenManager) discardToken(ctx context.Context) {
	m.cache.InvalidateTokenStatus()
	if err := m.store.Delete(ctx, model.KeyCachedToken); err != nil {
		m.logger.Warn("failed to delete stale token", "error", err)
	}
}

// generate performs the signed login exchange and persists the new token.
// The expiry is computed locally from the configured duration.
func (m *TokenManager) generate(ctx context.Context, creds model.CredentialRecord, version int) (*model.TokenRecord, error) {
	signature, err := Sign(creds.WorkspaceID, creds.ClientID, creds.ClientSecret)
	if err != nil {
		return nil, err
	}

	resp, err := m.api.Login(ctx, model.LoginRequest{
		WorkspaceID: creds.WorkspaceID,
		ClientID:    creds.ClientID,
		Signature:   signature,
	})
	if err != nil {
		status := model.StatusCodeOf(err)
		m.logger.Warn("login failed", "status", status, "error", err)
		if status == 0 {
			return nil, &model.Error{Kind: model.KindTransientHTTP, Op: "login", Err: err}
		}
		return nil, &model.Error{Kind: model.KindAuth, Op: "login", StatusCode: status, NeedsCredentials: true, Err: err}
	}
	if resp == nil || resp.Token == "" {
		return nil, model.NewAuthError("login", errors.New("response contains no token"))
	}

	now := m.now()
	rec := model.TokenRecord{
		Token:             resp.Token,
		ExpiresAt:         now.Add(m.cfg.Duration),
		ObtainedAt:        now,
		CredentialVersion: version,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode token: %w", err)
	}
	if err := m.store.Set(ctx, model.KeyCachedToken, string(data)); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}
	m.cache.InvalidateTokenStatus()

	m.logger.Info("token generated",
		"token_prefix", model.TokenPrefix(rec.Token),
		"credential_version", version,
		"expires_at", rec.ExpiresAt,
	)
	return &rec, nil
}

// Sign computes the login signature: HMAC-SHA256 over "{workspaceID}_{clientID}"
// keyed by clientSecret, as lowercase hex. Errors never include the secret.
func Sign(workspaceID, clientID, clientSecret string) (string, error) {
	var violations []string
	if workspaceID == "" {
		violations = append(violations, "workspaceId is required")
	}
	if clientID == "" {
		violations = append(violations, "clientId is required")
	}
	if clientSecret == "" {
		violations = append(violations, "clientSecret is required (present=false, length=0)")
	}
	if len(violations) > 0 {
		return "", model.NewValidationError("sign credentials", violations...)
	}

	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(workspaceID + "_" + clientID))
	return hex.EncodeToString(mac.Sum(nil)), nil
}
