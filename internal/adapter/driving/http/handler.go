package httphandler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
	"github.com/ericfisherdev/zotoksheets/internal/domain/port/driving"
	"github.com/ericfisherdev/zotoksheets/internal/metrics"
)

// maxBodyBytes caps request bodies; upload payloads are whole sheets.
const maxBodyBytes = 10 << 20

// Handler is the HTTP driving adapter that serves the JSON API.
type Handler struct {
	core   driving.Core
	logger *slog.Logger
}

// NewHandler creates a Handler. logger may be nil.
func NewHandler(core driving.Core, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{core: core, logger: logger}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with request ID, logging and recovery middleware.
func NewServeMux(h *Handler, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("PUT /api/v1/credentials", h.StoreCredentials)
	mux.HandleFunc("DELETE /api/v1/credentials", h.ClearCredentials)
	mux.HandleFunc("GET /api/v1/credentials/status", h.CredentialStatus)
	mux.HandleFunc("POST /api/v1/auth/token", h.GetToken)
	mux.HandleFunc("POST /api/v1/auth/validate", h.Validate)
	mux.HandleFunc("GET /api/v1/endpoints", h.ListEndpoints)
	mux.HandleFunc("POST /api/v1/fetch/{endpoint}", h.Fetch)
	mux.HandleFunc("POST /api/v1/upload/{endpoint}", h.Upload)
	mux.HandleFunc("POST /api/v1/validate-payload/{endpoint}", h.ValidatePayload)
	mux.HandleFunc("GET /api/v1/templates/{endpoint}", h.Template)
	mux.HandleFunc("GET /api/v1/mappings", h.ListMappings)
	mux.HandleFunc("GET /api/v1/mappings/{sheet}", h.GetMapping)
	mux.HandleFunc("PUT /api/v1/mappings/{sheet}", h.SaveMapping)
	mux.HandleFunc("DELETE /api/v1/mappings/{sheet}", h.DeleteMapping)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.Handle("GET /metrics", m.Handler())

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, m, wrapped)
	wrapped = requestIDMiddleware(wrapped)

	return wrapped
}

// StoreCredentials validates and stores a credential set.
func (h *Handler) StoreCredentials(w http.ResponseWriter, r *http.Request) {
	var req driving.CredentialsRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	resp := h.core.StoreCredentials(r.Context(), req)
	writeEnvelope(w, resp.Envelope, resp)
}

// ClearCredentials removes the stored credentials and cached token.
func (h *Handler) ClearCredentials(w http.ResponseWriter, r *http.Request) {
	env := h.core.ClearCredentials(r.Context())
	writeEnvelope(w, env, env)
}

// CredentialStatus reports stored credential metadata without the secret.
func (h *Handler) CredentialStatus(w http.ResponseWriter, r *http.Request) {
	resp := h.core.CredentialStatus(r.Context())
	writeEnvelope(w, resp.Envelope, resp)
}

// GetToken returns a usable bearer token. ?force=true mints a new one.
func (h *Handler) GetToken(w http.ResponseWriter, r *http.Request) {
	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "force must be a boolean")
			return
		}
		force = parsed
	}
	resp := h.core.GetToken(r.Context(), force)
	writeEnvelope(w, resp.Envelope, resp)
}

// Validate authenticates for a user action, confirming the token server-side.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	res := h.core.AuthenticateForUserAction(r.Context())
	status := http.StatusOK
	if !res.Success {
		status = statusForErrorType(string(res.ErrorType))
	}
	writeJSON(w, status, res)
}

// ListEndpoints returns the endpoint catalog.
func (h *Handler) ListEndpoints(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.core.Endpoints())
}

// Fetch retrieves every record of an endpoint. The body is optional.
func (h *Handler) Fetch(w http.ResponseWriter, r *http.Request) {
	var body FetchBody
	if !decodeBody(w, r, &body, true) {
		return
	}
	budgets, err := body.budgets()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := h.core.Fetch(r.Context(), driving.FetchRequest{
		Endpoint: r.PathValue("endpoint"),
		Period:   body.Period,
		Budgets:  budgets,
	})
	writeEnvelope(w, resp.Envelope, resp)
}

// Upload submits a wrapped payload to an endpoint.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	var body PayloadBody
	if !decodeBody(w, r, &body, false) {
		return
	}
	resp := h.core.Upload(r.Context(), driving.UploadRequest{
		Endpoint: r.PathValue("endpoint"),
		Payload:  body.Payload,
	})
	writeEnvelope(w, resp.Envelope, resp)
}

// ValidatePayload checks a payload against the endpoint schema. Invalid
// payloads are still a 200; the body carries the verdict.
func (h *Handler) ValidatePayload(w http.ResponseWriter, r *http.Request) {
	var body PayloadBody
	if !decodeBody(w, r, &body, false) {
		return
	}
	writeJSON(w, http.StatusOK, h.core.ValidatePayload(r.PathValue("endpoint"), body.Payload))
}

// Template returns a sample payload for an uploadable endpoint.
func (h *Handler) Template(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := h.core.Template(r.PathValue("endpoint"))
	if !ok {
		writeError(w, http.StatusNotFound, "no upload template for endpoint")
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

// ListMappings returns every saved column mapping.
func (h *Handler) ListMappings(w http.ResponseWriter, r *http.Request) {
	resp := h.core.ListMappings(r.Context())
	if resp.Success && resp.Mappings == nil {
		resp.Mappings = []model.MappingRecord{}
	}
	writeEnvelope(w, resp.Envelope, resp)
}

// GetMapping returns the mapping saved for a sheet.
func (h *Handler) GetMapping(w http.ResponseWriter, r *http.Request) {
	resp := h.core.GetMapping(r.Context(), r.PathValue("sheet"))
	writeEnvelope(w, resp.Envelope, resp)
}

// SaveMapping stores the mapping for a sheet.
func (h *Handler) SaveMapping(w http.ResponseWriter, r *http.Request) {
	var body MappingBody
	if !decodeBody(w, r, &body, false) {
		return
	}
	resp := h.core.SaveMapping(r.Context(), model.MappingRecord{
		Sheet:    r.PathValue("sheet"),
		Endpoint: body.Endpoint,
		Mapping:  body.Mapping,
	})
	writeEnvelope(w, resp.Envelope, resp)
}

// DeleteMapping removes the mapping for a sheet.
func (h *Handler) DeleteMapping(w http.ResponseWriter, r *http.Request) {
	env := h.core.DeleteMapping(r.Context(), r.PathValue("sheet"))
	writeEnvelope(w, env, env)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// decodeBody decodes a JSON request body into v. When optional is set an
// empty body leaves v untouched. On failure a 400 is written and false
// returned.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	dec := jsonDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
