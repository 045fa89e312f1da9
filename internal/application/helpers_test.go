package application_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/zotoksheets/internal/adapter/driven/memory"
	"github.com/ericfisherdev/zotoksheets/internal/application"
	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
)

// --- Mock implementations ---

type fakeAPI struct {
	mu      sync.Mutex
	login   func(req model.LoginRequest) (*model.LoginResponse, error)
	fetch   func(token string, q model.PageQuery) (*model.Page, error)
	post    func(token, path string, payload any) (*model.PostResult, error)
	logins  int
	queries []model.PageQuery
	posts   int
}

func (f *fakeAPI) Login(_ context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	f.mu.Lock()
	f.logins++
	n := f.logins
	f.mu.Unlock()
	if f.login == nil {
		return &model.LoginResponse{Token: fmt.Sprintf("token-%d", n)}, nil
	}
	return f.login(req)
}

func (f *fakeAPI) FetchPage(_ context.Context, token string, q model.PageQuery) (*model.Page, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.fetch == nil {
		return &model.Page{Headers: map[string]any{}, Data: []model.Record{}}, nil
	}
	return f.fetch(token, q)
}

func (f *fakeAPI) PostEntities(_ context.Context, token, path string, payload any) (*model.PostResult, error) {
	f.mu.Lock()
	f.posts++
	f.mu.Unlock()
	if f.post == nil {
		return &model.PostResult{StatusCode: 200}, nil
	}
	return f.post(token, path, payload)
}

func (f *fakeAPI) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func (f *fakeAPI) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeAPI) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts
}

// failingStore is a KeyValueStore whose every call fails.
type failingStore struct{}

var errStoreDown = errors.New("store unavailable")

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errStoreDown
}
func (failingStore) Set(context.Context, string, string) error { return errStoreDown }
func (failingStore) Delete(context.Context, string) error      { return errStoreDown }
func (failingStore) List(context.Context, string) (map[string]string, error) {
	return nil, errStoreDown
}

// --- Fixtures ---

const (
	testWorkspace = "ws1"
	testClientID  = "clientid1234567"
	testSecret    = "secretvalue1234"
)

var testTTLs = application.CacheTTLs{
	Credentials: time.Minute,
	TokenStatus: time.Minute,
	Validation:  time.Minute,
}

var testTokenConfig = application.TokenConfig{
	Duration: 24 * time.Hour,
	Buffer:   5 * time.Minute,
}

var fastRetry = application.RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}

type core struct {
	store  *memory.Store
	cache  *application.VolatileCache
	creds  *application.CredentialService
	tokens *application.TokenManager
	api    *fakeAPI
}

func newCore(api *fakeAPI) *core {
	if api == nil {
		api = &fakeAPI{}
	}
	store := memory.NewStore()
	cache := application.NewVolatileCache(testTTLs, nil)
	creds := application.NewCredentialService(store, cache, nil)
	tokens := application.NewTokenManager(creds, store, api, cache, testTokenConfig, nil, nil)
	return &core{store: store, cache: cache, creds: creds, tokens: tokens, api: api}
}

func (c *core) storeDefaultCredentials(t require.TestingT) model.StoreResult {
	res, err := c.creds.Store(context.Background(), testWorkspace, testClientID, testSecret)
	require.NoError(t, err)
	return res
}

func testCatalog() model.Catalog {
	return model.Catalog{
		"customers": {
			Key:                "customers",
			APIName:            "customers",
			SupportsPagination: true,
			SupportsTimePeriod: true,
			AllowedTimePeriods: []string{"7", "30", "90"},
			DefaultPeriod:      "30",
			SupportsUpload:     true,
			UploadFields: []model.FieldSpec{
				{Name: "firmName", Type: model.FieldString},
				{Name: "creditLimit", Type: model.FieldNumber},
			},
		},
		"products": {
			Key:                "products",
			APIName:            "products",
			SupportsPagination: false,
		},
		"orders": {
			Key:                "orders",
			APIName:            "orders",
			SupportsPagination: true,
		},
	}
}

// records builds n records tagged with a page-local label.
func records(label string, n int) []model.Record {
	out := make([]model.Record, n)
	for i := range out {
		out[i] = model.Record{"id": fmt.Sprintf("%s%d", label, i)}
	}
	return out
}

func page(data []model.Record) *model.Page {
	return &model.Page{Headers: map[string]any{}, Data: data}
}
