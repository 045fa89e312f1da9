package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/zotoksheets/internal/application"
	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
)

func newUploader(api *fakeAPI) *application.Uploader {
	return application.NewUploader(api, testCatalog(), fastRetry, nil, nil)
}

func customersPayload() map[string]any {
	return map[string]any{"customers": []any{map[string]any{"firmName": "X"}}}
}

func TestUploader_AuthFailureExhaustsRetries(t *testing.T) {
	api := &fakeAPI{post: func(string, string, any) (*model.PostResult, error) {
		return nil, &model.HTTPError{StatusCode: 401, Body: "token expired"}
	}}

	res, err := newUploader(api).Upload(context.Background(), "tok", "customers", customersPayload())

	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "Authentication failed")
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, fastRetry.MaxAttempts, api.postCount())
	assert.True(t, model.NeedsCredentials(err))
	assert.Equal(t, 401, model.StatusCodeOf(err))
	require.ErrorIs(t, err, model.ErrTransientHTTP)
}

func TestUploader_FailureMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "bad request", err: &model.HTTPError{StatusCode: 400, Body: "firmName missing"}, want: "Bad request (400): firmName missing"},
		{name: "server error", err: &model.HTTPError{StatusCode: 502, Body: "gateway"}, want: "Upload failed (502): gateway"},
		{name: "network", err: &model.HTTPError{Err: errors.New("connection reset")}, want: "Network error: connection reset"},
		{name: "other", err: errors.New("encode failed"), want: "Upload failed: encode failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{post: func(string, string, any) (*model.PostResult, error) { return nil, tt.err }}

			_, err := newUploader(api).Upload(context.Background(), "tok", "customers", customersPayload())

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.False(t, model.NeedsCredentials(err))
			assert.Equal(t, fastRetry.MaxAttempts, api.postCount())
		})
	}
}

func TestUploader_RetryThenSuccess(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	var gotPath string
	var gotPayload any
	api := &fakeAPI{post: func(token, path string, payload any) (*model.PostResult, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		gotPath, gotPayload = path, payload
		if calls == 1 {
			return nil, &model.HTTPError{StatusCode: 503}
		}
		return &model.PostResult{StatusCode: 201, Body: map[string]any{"inserted": float64(1)}}, nil
	}}

	res, err := newUploader(api).Upload(context.Background(), "tok", "customers", customersPayload())

	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "customers updated successfully", res.Message)
	assert.Equal(t, map[string]any{"inserted": float64(1)}, res.Data)
	assert.Equal(t, "customers", gotPath)
	assert.Equal(t, customersPayload(), gotPayload)
}

func TestUploader_EmptyBodySynthesizesMessage(t *testing.T) {
	api := &fakeAPI{}

	res, err := newUploader(api).Upload(context.Background(), "tok", "customers", customersPayload())

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"message": "customers updated successfully"}, res.Data)
	assert.Equal(t, 1, res.Attempts)
}

func TestUploader_RejectsBeforeNetwork(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		payload  map[string]any
	}{
		{name: "nil payload", endpoint: "customers", payload: nil},
		{name: "unknown endpoint", endpoint: "invoices", payload: customersPayload()},
		{name: "read-only endpoint", endpoint: "products", payload: map[string]any{"products": []any{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}

			_, err := newUploader(api).Upload(context.Background(), "tok", tt.endpoint, tt.payload)

			require.ErrorIs(t, err, model.ErrValidation)
			assert.Equal(t, 0, api.postCount())
		})
	}
}

func TestWrapRecords(t *testing.T) {
	ep := testCatalog()["customers"]

	got := application.WrapRecords(ep, []model.Record{{"firmName": "A"}, {"firmName": "B"}})

	assert.Equal(t, map[string]any{"customers": []any{
		map[string]any{"firmName": "A"},
		map[string]any{"firmName": "B"},
	}}, got)
}
