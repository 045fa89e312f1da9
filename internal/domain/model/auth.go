package model

// AuthErrorType classifies a failed authentication attempt for the caller.
type AuthErrorType string

const (
	AuthTokenRetrievalFailed AuthErrorType = "TOKEN_RETRIEVAL_FAILED"
	AuthInvalidCredentials   AuthErrorType = "INVALID_CREDENTIALS"
	AuthForbidden            AuthErrorType = "FORBIDDEN"
	AuthUnauthorizedMaxRetry AuthErrorType = "UNAUTHORIZED_MAX_RETRIES"
	AuthNetworkError         AuthErrorType = "NETWORK_ERROR"
	AuthValidationFailed     AuthErrorType = "VALIDATION_FAILED"
)

// AuthState is a state of the request-authentication state machine.
type AuthState string

const (
	AuthStateNoToken       AuthState = "no_token"
	AuthStateTokenObtained AuthState = "token_obtained"
	AuthStateValidating    AuthState = "validating"
	AuthStateRefreshing    AuthState = "refreshing"
	AuthStateValidated     AuthState = "validated"
	AuthStateFailed        AuthState = "failed"
)

// AuthResult is the outcome of authenticating a request. It never carries a
// Go error; failures are described by ErrorType and Message.
type AuthResult struct {
	Success          bool          `json:"success"`
	Token            string        `json:"-"`
	Message          string        `json:"message,omitempty"`
	NeedsCredentials bool          `json:"needsCredentials"`
	ErrorType        AuthErrorType `json:"errorType,omitempty"`
	Validated        bool          `json:"validated"`
	Refreshed        bool          `json:"refreshed"`
	Cached           bool          `json:"cached"`
	State            AuthState     `json:"state"`
}
