package httphandler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
	"github.com/ericfisherdev/zotoksheets/internal/domain/port/driving"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeEnvelope writes body with the status implied by env.
func writeEnvelope(w http.ResponseWriter, env driving.Envelope, body any) {
	status := http.StatusOK
	if !env.Success {
		status = statusForErrorType(env.ErrorType)
	}
	writeJSON(w, status, body)
}

// statusForErrorType maps a port error type to an HTTP status.
func statusForErrorType(errorType string) int {
	switch errorType {
	case string(model.KindValidation):
		return http.StatusBadRequest
	case string(model.KindAuth),
		string(model.AuthTokenRetrievalFailed),
		string(model.AuthInvalidCredentials),
		string(model.AuthUnauthorizedMaxRetry):
		return http.StatusUnauthorized
	case string(model.AuthForbidden), driving.ErrorTypeMutationBlocked:
		return http.StatusForbidden
	case driving.ErrorTypeNotFound:
		return http.StatusNotFound
	case string(model.KindTransientHTTP),
		string(model.KindMalformedResponse),
		string(model.AuthNetworkError),
		string(model.AuthValidationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func jsonDecoder(r io.Reader) *json.Decoder {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// FetchBody is the optional JSON body of a fetch request. MaxExecutionTime
// is a Go duration string such as "90s".
type FetchBody struct {
	Period           string `json:"period"`
	PageSize         int    `json:"pageSize"`
	MaxPages         int    `json:"maxPages"`
	BatchSize        int    `json:"batchSize"`
	MemoryLimit      int    `json:"memoryLimit"`
	MaxExecutionTime string `json:"maxExecutionTime"`
}

func (b FetchBody) budgets() (model.FetchBudgets, error) {
	out := model.FetchBudgets{
		PageSize:    b.PageSize,
		MaxPages:    b.MaxPages,
		BatchSize:   b.BatchSize,
		MemoryLimit: b.MemoryLimit,
	}
	if b.MaxExecutionTime != "" {
		d, err := time.ParseDuration(b.MaxExecutionTime)
		if err != nil {
			return model.FetchBudgets{}, fmt.Errorf("maxExecutionTime: %w", err)
		}
		out.MaxExecutionTime = d
	}
	return out, nil
}

// PayloadBody carries an already wrapped upload payload.
type PayloadBody struct {
	Payload map[string]any `json:"payload"`
}

// MappingBody is the JSON body for saving a sheet mapping.
type MappingBody struct {
	Endpoint string              `json:"endpoint"`
	Mapping  model.ColumnMapping `json:"mapping"`
}
