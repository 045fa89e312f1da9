package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/zotoksheets/internal/adapter/driven/memory"
	"github.com/ericfisherdev/zotoksheets/internal/application"
	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
	"github.com/ericfisherdev/zotoksheets/internal/domain/port/driving"
)

func testOptions() application.Options {
	return application.Options{
		Cache:              testTTLs,
		Token:              testTokenConfig,
		Fetch:              testFetchConfig,
		UploadRetry:        fastRetry,
		ValidationEndpoint: "customers",
	}
}

func newService(t *testing.T, api *fakeAPI, opts application.Options) *application.Service {
	t.Helper()
	svc, err := application.Wire(memory.NewStore(), api, testCatalog(), opts, nil, nil)
	require.NoError(t, err)
	return svc
}

func storeCreds(t *testing.T, svc *application.Service) {
	t.Helper()
	resp := svc.StoreCredentials(context.Background(), driving.CredentialsRequest{
		WorkspaceID:  testWorkspace,
		ClientID:     testClientID,
		ClientSecret: testSecret,
	})
	require.True(t, resp.Success, resp.Message)
}

func TestWire_UnknownValidationEndpoint(t *testing.T) {
	opts := testOptions()
	opts.ValidationEndpoint = "invoices"

	_, err := application.Wire(memory.NewStore(), &fakeAPI{}, testCatalog(), opts, nil, nil)

	require.ErrorIs(t, err, model.ErrValidation)
}

func TestService_CredentialLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, &fakeAPI{}, testOptions())

	bad := svc.StoreCredentials(ctx, driving.CredentialsRequest{WorkspaceID: "w"})
	assert.False(t, bad.Success)
	assert.Equal(t, string(model.KindValidation), bad.ErrorType)
	assert.Len(t, bad.Violations, 3)

	stored := svc.StoreCredentials(ctx, driving.CredentialsRequest{
		WorkspaceID: testWorkspace, ClientID: testClientID, ClientSecret: testSecret,
	})
	require.True(t, stored.Success)
	assert.Equal(t, 1, stored.Version)
	assert.True(t, stored.CredentialChanged)

	tok := svc.GetToken(ctx, false)
	require.True(t, tok.Success)
	assert.True(t, tok.Generated)

	status := svc.CredentialStatus(ctx)
	require.True(t, status.Success)
	assert.True(t, status.HasCredentials)
	assert.Equal(t, testClientID, status.ClientID)
	assert.True(t, status.Token.HasToken)

	cleared := svc.ClearCredentials(ctx)
	require.True(t, cleared.Success)
	status = svc.CredentialStatus(ctx)
	assert.False(t, status.HasCredentials)

	tok = svc.GetToken(ctx, false)
	assert.False(t, tok.Success)
	assert.True(t, tok.NeedsCredentials)
	assert.Equal(t, string(model.KindAuth), tok.ErrorType)
}

func TestService_FetchValidatesBeforeAuth(t *testing.T) {
	api := &fakeAPI{}
	svc := newService(t, api, testOptions())

	resp := svc.Fetch(context.Background(), driving.FetchRequest{Endpoint: "customers", Period: "45"})

	assert.False(t, resp.Success)
	assert.Equal(t, string(model.KindValidation), resp.ErrorType)
	assert.NotEmpty(t, resp.OperationID)
	assert.Equal(t, 0, api.loginCount())
}

func TestService_FetchWithoutCredentials(t *testing.T) {
	svc := newService(t, &fakeAPI{}, testOptions())

	resp := svc.Fetch(context.Background(), driving.FetchRequest{Endpoint: "orders"})

	assert.False(t, resp.Success)
	assert.True(t, resp.NeedsCredentials)
	assert.Equal(t, string(model.AuthTokenRetrievalFailed), resp.ErrorType)
}

func TestService_Fetch(t *testing.T) {
	api := &fakeAPI{fetch: pagesServer(records("a", 2), records("b", 1))}
	svc := newService(t, api, testOptions())
	storeCreds(t, svc)

	resp := svc.Fetch(context.Background(), driving.FetchRequest{
		Endpoint: "orders",
		Budgets:  model.FetchBudgets{PageSize: 2},
	})

	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, 3, resp.RecordCount)
	assert.Equal(t, 2, resp.PagesProcessed)
	assert.Equal(t, model.StopEndOfData, resp.StopReason)
}

func TestService_UploadGuards(t *testing.T) {
	tests := []struct {
		name       string
		production bool
		allow      bool
		endpoint   string
		payload    map[string]any
		wantType   string
	}{
		{
			name:       "blocked in production",
			production: true,
			endpoint:   "customers",
			payload:    customersPayload(),
			wantType:   driving.ErrorTypeMutationBlocked,
		},
		{
			name:     "read-only endpoint",
			endpoint: "products",
			payload:  map[string]any{"products": []any{}},
			wantType: string(model.KindValidation),
		},
		{
			name:     "schema violation",
			endpoint: "customers",
			payload:  map[string]any{"customers": []any{map[string]any{"firmName": 12}}},
			wantType: string(model.KindValidation),
		},
		{
			name:     "missing payload",
			endpoint: "customers",
			wantType: string(model.KindValidation),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			opts := testOptions()
			opts.Production = tt.production
			opts.AllowProdMutations = tt.allow
			svc := newService(t, api, opts)
			storeCreds(t, svc)

			resp := svc.Upload(context.Background(), driving.UploadRequest{Endpoint: tt.endpoint, Payload: tt.payload})

			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantType, resp.ErrorType)
			assert.Equal(t, 0, api.loginCount())
			assert.Equal(t, 0, api.postCount())
		})
	}
}

func TestService_UploadAllowedInProductionWhenEnabled(t *testing.T) {
	api := &fakeAPI{}
	opts := testOptions()
	opts.Production = true
	opts.AllowProdMutations = true
	svc := newService(t, api, opts)
	storeCreds(t, svc)

	resp := svc.Upload(context.Background(), driving.UploadRequest{Endpoint: "customers", Payload: customersPayload()})

	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, "customers updated successfully", resp.Message)
	assert.Equal(t, 1, resp.Attempts)
	assert.Equal(t, 1, api.postCount())
}

func TestService_ValidatePayloadAndTemplate(t *testing.T) {
	svc := newService(t, &fakeAPI{}, testOptions())

	ok := svc.ValidatePayload("customers", customersPayload())
	assert.True(t, ok.Valid)
	assert.Equal(t, []string{}, ok.Errors)

	bad := svc.ValidatePayload("customers", map[string]any{"customers": "x"})
	assert.False(t, bad.Valid)
	assert.Equal(t, []string{`"customers" must be an array`}, bad.Errors)

	unknown := svc.ValidatePayload("invoices", customersPayload())
	assert.False(t, unknown.Valid)
	require.Len(t, unknown.Errors, 1)

	tmpl, found := svc.Template("customers")
	require.True(t, found)
	assert.Contains(t, tmpl, "customers")

	_, found = svc.Template("products")
	assert.False(t, found)
}

func TestService_Mappings(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, &fakeAPI{}, testOptions())

	missing := svc.GetMapping(ctx, "Sheet1")
	assert.False(t, missing.Success)
	assert.Equal(t, driving.ErrorTypeNotFound, missing.ErrorType)

	saved := svc.SaveMapping(ctx, model.MappingRecord{Sheet: "Sheet1", Mapping: model.ColumnMapping{"id": "ID"}})
	require.True(t, saved.Success)

	got := svc.GetMapping(ctx, "Sheet1")
	require.True(t, got.Success)
	assert.Equal(t, "ID", got.Mapping.Mapping["id"])

	list := svc.ListMappings(ctx)
	require.True(t, list.Success)
	assert.Len(t, list.Mappings, 1)

	del := svc.DeleteMapping(ctx, "Sheet1")
	assert.True(t, del.Success)
	assert.Empty(t, svc.ListMappings(ctx).Mappings)
}

func TestService_SweepCache(t *testing.T) {
	opts := testOptions()
	opts.Cache = application.CacheTTLs{Credentials: time.Nanosecond, TokenStatus: time.Nanosecond, Validation: time.Nanosecond}
	svc := newService(t, &fakeAPI{}, opts)
	storeCreds(t, svc)
	time.Sleep(time.Millisecond)

	assert.GreaterOrEqual(t, svc.SweepCache(), 1)
}
