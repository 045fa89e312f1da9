package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
	"github.com/ericfisherdev/zotoksheets/internal/domain/port/driven"
	"github.com/ericfisherdev/zotoksheets/internal/metrics"
)

// Uploader POSTs wrapped entity arrays with bounded retry.
type Uploader struct {
	api     driven.ZotokAPI
	catalog model.Catalog
	retry   RetryPolicy
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewUploader creates an Uploader. m and logger may be nil.
func NewUploader(api driven.ZotokAPI, catalog model.Catalog, retry RetryPolicy, m *metrics.Metrics, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		api:     api,
		catalog: catalog,
		retry:   retry,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// WrapRecords builds the upload payload for ep from a record slice.
func WrapRecords(ep model.Endpoint, records []model.Record) map[string]any {
	items := make([]any, len(records))
	for i, r := range records {
		items[i] = map[string]any(r)
	}
	return map[string]any{ep.PayloadKey(): items}
}

// Upload sends payload to the endpoint's upload path. Every failure is
// retried up to the policy's attempt budget; 401 and 400 only change the
// reported message.
func (u *Uploader) Upload(ctx context.Context, token, endpointKey string, payload map[string]any) (*model.UploadResult, error) {
	if payload == nil {
		return nil, model.NewValidationError("upload", "payload is required")
	}
	ep, err := u.catalog.Lookup(endpointKey)
	if err != nil {
		return nil, err
	}
	if !ep.SupportsUpload {
		return nil, model.NewValidationError("upload", fmt.Sprintf("endpoint %q does not support upload", ep.Key))
	}

	start := u.now()
	var res *model.PostResult
	attempts, err := u.retry.run(ctx, "upload", u.metrics, u.logger, func(int) error {
		r, err := u.api.PostEntities(ctx, token, ep.UploadTarget(), payload)
		if err != nil {
			return &uploadFailure{err: err}
		}
		res = r
		return nil
	})
	elapsed := u.now().Sub(start)

	if err != nil {
		u.metrics.IncUpload(ep.Key, "failure")
		status := model.StatusCodeOf(err)
		u.logger.Error("upload failed",
			"endpoint", ep.Key,
			"attempts", attempts,
			"status", status,
			"error", err,
		)
		return nil, &model.Error{
			Kind:             model.KindTransientHTTP,
			Op:               "upload " + ep.Key,
			StatusCode:       status,
			NeedsCredentials: status == http.StatusUnauthorized,
			Err:              fmt.Errorf("failed after %d attempts: %w", attempts, err),
		}
	}

	message := ep.Key + " updated successfully"
	data := res.Body
	if data == nil {
		data = map[string]any{"message": message}
	}
	u.metrics.IncUpload(ep.Key, "success")
	u.logger.Info("upload complete",
		"endpoint", ep.Key,
		"status", res.StatusCode,
		"attempts", attempts,
		"elapsed", elapsed,
	)
	return &model.UploadResult{
		Data:          data,
		Message:       message,
		Attempts:      attempts,
		ExecutionTime: elapsed,
	}, nil
}

// uploadFailure reports one failed attempt with a status-specific message.
type uploadFailure struct {
	err error
}

func (e *uploadFailure) Unwrap() error { return e.err }

func (e *uploadFailure) Error() string {
	var h *model.HTTPError
	if !errors.As(e.err, &h) {
		return "Upload failed: " + e.err.Error()
	}
	switch h.StatusCode {
	case 0:
		return fmt.Sprintf("Network error: %v", h.Err)
	case http.StatusUnauthorized:
		return "Authentication failed (401): " + h.Body
	case http.StatusBadRequest:
		return "Bad request (400): " + h.Body
	default:
		return fmt.Sprintf("Upload failed (%d): %s", h.StatusCode, h.Body)
	}
}
