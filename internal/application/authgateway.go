package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
	"github.com/ericfisherdev/zotoksheets/internal/domain/port/driven"
)

// TokenSource supplies bearer tokens to the AuthGateway.
type TokenSource interface {
	GetToken(ctx context.Context, force bool) (*model.TokenResult, error)
}

// AuthGateway is the single entry point data operations use to obtain a
// bearer token. User actions additionally confirm the token against the API
// with one refresh-and-retry on 401.
type AuthGateway struct {
	tokens TokenSource
	api    driven.ZotokAPI
	probe  model.PageQuery
	cache  *VolatileCache
	logger *slog.Logger
}

// NewAuthGateway creates an AuthGateway that validates tokens with a one-record
// page request against probe. logger may be nil.
func NewAuthGateway(tokens TokenSource, api driven.ZotokAPI, probe model.Endpoint, cache *VolatileCache, logger *slog.Logger) *AuthGateway {
	if logger == nil {
		logger = slog.Default()
	}
	period, _ := probe.ResolvePeriod("")
	return &AuthGateway{
		tokens: tokens,
		api:    api,
		probe: model.PageQuery{
			APIName:    probe.APIName,
			Paginated:  true,
			PageNo:     1,
			PageSize:   1,
			Period:     period,
			Revalidate: true,
		},
		cache:  cache,
		logger: logger,
	}
}

// AuthenticateForUserAction obtains a token and confirms it server-side.
func (g *AuthGateway) AuthenticateForUserAction(ctx context.Context) model.AuthResult {
	return g.AuthenticateRequest(ctx, true)
}

// AuthenticateForDataFetch obtains a token without a validation round-trip.
func (g *AuthGateway) AuthenticateForDataFetch(ctx context.Context) model.AuthResult {
	return g.AuthenticateRequest(ctx, false)
}

// AuthenticateRequest obtains a token and, when validate is set, confirms it
// with a lightweight API call.
func (g *AuthGateway) AuthenticateRequest(ctx context.Context, validate bool) model.AuthResult {
	tok, err := g.tokens.GetToken(ctx, false)
	if err != nil {
		g.logger.Warn("token retrieval failed", "error", err)
		return model.AuthResult{
			Message:          err.Error(),
			NeedsCredentials: true,
			ErrorType:        model.AuthTokenRetrievalFailed,
			State:            model.AuthStateFailed,
		}
	}

	if !validate {
		return model.AuthResult{
			Success: true,
			Token:   tok.Token,
			Cached:  tok.Cached,
			State:   model.AuthStateTokenObtained,
		}
	}

	result := g.validate(ctx, tok.Token, 0)
	result.Cached = tok.Cached
	return result
}

// validate runs the state machine from Validating. attempt 0 may refresh once
// on 401; attempt 1 never does.
func (g *AuthGateway) validate(ctx context.Context, token string, attempt int) model.AuthResult {
	key := validationKey(token)
	if cached, ok := g.cache.Validation(key); ok {
		g.logger.Debug("token validation served from cache", "token_prefix", model.TokenPrefix(token))
		cached.Token = token
		return cached
	}

	_, err := g.api.FetchPage(ctx, token, g.probe)
	if err == nil || model.KindOf(err) == model.KindMalformedResponse {
		result := model.AuthResult{
			Success:   true,
			Token:     token,
			Validated: true,
			State:     model.AuthStateValidated,
		}
		g.cache.SetValidation(key, result)
		return result
	}

	status := model.StatusCodeOf(err)
	if status == http.StatusUnauthorized && attempt == 0 {
		g.logger.Info("token rejected, refreshing", "token_prefix", model.TokenPrefix(token))
		refreshed, rerr := g.tokens.GetToken(ctx, true)
		if rerr != nil {
			g.logger.Warn("token refresh failed", "error", rerr)
			return invalidCredentials(rerr.Error())
		}
		inner := g.validate(ctx, refreshed.Token, 1)
		if !inner.Success {
			g.logger.Warn("refreshed token rejected",
				"error_type", inner.ErrorType,
				"message", inner.Message,
			)
			return invalidCredentials("token rejected after refresh: " + inner.Message)
		}
		inner.Refreshed = true
		return inner
	}

	result := model.AuthResult{
		Message:          err.Error(),
		NeedsCredentials: status == http.StatusUnauthorized || status == http.StatusForbidden,
		State:            model.AuthStateFailed,
	}
	switch status {
	case http.StatusUnauthorized:
		result.ErrorType = model.AuthUnauthorizedMaxRetry
	case http.StatusForbidden:
		result.ErrorType = model.AuthForbidden
	case 0:
		result.ErrorType = model.AuthNetworkError
	default:
		result.ErrorType = model.AuthValidationFailed
	}
	g.logger.Warn("token validation failed", "status", status, "error_type", result.ErrorType)
	return result
}

func invalidCredentials(message string) model.AuthResult {
	return model.AuthResult{
		Message:          message,
		NeedsCredentials: true,
		ErrorType:        model.AuthInvalidCredentials,
		State:            model.AuthStateFailed,
	}
}

// validationKey identifies a token in the validation cache without storing it.
func validationKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "token:" + hex.EncodeToString(sum[:8])
}
