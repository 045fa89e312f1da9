package driven

import (
	"context"

	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
)

// ZotokAPI defines the driven port for the Zotok REST API. Non-2xx replies
// are returned as *model.HTTPError; responses that break the page contract
// as a model.KindMalformedResponse error.
type ZotokAPI interface {
	// Login exchanges a signed credential body for a bearer token.
	Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error)

	// FetchPage retrieves one page (or the whole dataset when q.Paginated is false).
	FetchPage(ctx context.Context, token string, q model.PageQuery) (*model.Page, error)

	// PostEntities submits payload to the given API path.
	PostEntities(ctx context.Context, token, path string, payload any) (*model.PostResult, error)
}
