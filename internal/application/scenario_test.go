package application_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/zotoksheets/internal/adapter/driven/memory"
	"github.com/ericfisherdev/zotoksheets/internal/adapter/driven/zotok"
	"github.com/ericfisherdev/zotoksheets/internal/application"
	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
	"github.com/ericfisherdev/zotoksheets/internal/domain/port/driving"
)

// zotokServer is a stub of the login, page and upload endpoints.
type zotokServer struct {
	logins  atomic.Int32
	gets    atomic.Int32
	uploads atomic.Int32
	pages   [][]string
	upload  int
}

func (z *zotokServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == zotok.LoginPath:
		z.logins.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "abc"})
	case r.Method == http.MethodGet:
		z.gets.Add(1)
		pageNo, _ := strconv.Atoi(r.URL.Query().Get("pageNo"))
		data := []map[string]any{}
		if pageNo >= 1 && pageNo <= len(z.pages) {
			for _, id := range z.pages[pageNo-1] {
				data = append(data, map[string]any{"id": id})
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"headers": map[string]any{}, "data": data})
	default:
		z.uploads.Add(1)
		if z.upload == 0 {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		w.WriteHeader(z.upload)
		_, _ = w.Write([]byte(`{"error":"token expired"}`))
	}
}

func newScenario(t *testing.T, z *zotokServer) *application.Service {
	t.Helper()
	srv := httptest.NewServer(z)
	t.Cleanup(srv.Close)

	client := zotok.NewClientWithHTTPClient(srv.Client(), srv.URL, nil, nil)
	svc, err := application.Wire(memory.NewStore(), client, testCatalog(), testOptions(), nil, nil)
	require.NoError(t, err)
	return svc
}

func TestScenario_StoreThenToken(t *testing.T) {
	ctx := context.Background()
	z := &zotokServer{}
	svc := newScenario(t, z)

	stored := svc.StoreCredentials(ctx, driving.CredentialsRequest{
		WorkspaceID: testWorkspace, ClientID: testClientID, ClientSecret: testSecret,
	})
	require.True(t, stored.Success)
	assert.Equal(t, 1, stored.Version)
	assert.True(t, stored.CredentialChanged)

	first := svc.GetToken(ctx, false)
	require.True(t, first.Success, first.Message)
	assert.Equal(t, "abc", first.Token)
	assert.True(t, first.Generated)

	second := svc.GetToken(ctx, false)
	require.True(t, second.Success)
	assert.True(t, second.Cached)
	assert.Equal(t, int32(1), z.logins.Load())
}

func TestScenario_FetchPagesUntilShortPage(t *testing.T) {
	z := &zotokServer{pages: [][]string{{"a", "b"}, {"c", "d"}, {"e"}}}
	svc := newScenario(t, z)
	storeCreds(t, svc)

	resp := svc.Fetch(context.Background(), driving.FetchRequest{
		Endpoint: "customers",
		Period:   "30",
		Budgets:  model.FetchBudgets{PageSize: 2, MaxPages: 10},
	})

	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, []any{"a", "b", "c", "d", "e"}, recordIDs(resp.Data))
	assert.Equal(t, 5, resp.RecordCount)
	assert.Equal(t, 3, resp.PagesProcessed)
	assert.Equal(t, int32(3), z.gets.Load())
}

func TestScenario_UploadUnauthorizedEveryAttempt(t *testing.T) {
	z := &zotokServer{upload: http.StatusUnauthorized}
	svc := newScenario(t, z)
	storeCreds(t, svc)

	resp := svc.Upload(context.Background(), driving.UploadRequest{
		Endpoint: "customers",
		Payload:  map[string]any{"customers": []any{map[string]any{"firmName": "X"}}},
	})

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "Authentication failed")
	assert.True(t, resp.NeedsCredentials)
	assert.Equal(t, int32(fastRetry.MaxAttempts), z.uploads.Load())
}
