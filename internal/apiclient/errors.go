package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNetwork indicates that no response was received (transport failure or timeout).
	ErrNetwork = errors.New("apiclient.network")
	// ErrAuthExpired indicates the refresh attempt failed and the credentials were cleared.
	ErrAuthExpired = errors.New("apiclient.auth_expired")
	// ErrRefreshFailed indicates the refresh endpoint did not yield a new access token.
	ErrRefreshFailed = errors.New("apiclient.refresh_failed")
	// ErrMissingBaseURL indicates that Config.BaseURL was empty.
	ErrMissingBaseURL = errors.New("apiclient.missing_base_url")
	// ErrInvalidBaseURL indicates that Config.BaseURL could not be parsed as an absolute URL.
	ErrInvalidBaseURL = errors.New("apiclient.invalid_base_url")
	// ErrMissingCredentialStore indicates that no credential store was supplied.
	ErrMissingCredentialStore = errors.New("apiclient.missing_credential_store")
)

const unexpectedErrorMessage = "An unexpected error occurred"

// HTTPError reports a response with a non-2xx status after any retry logic completed.
type HTTPError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (httpError *HTTPError) Error() string {
	if httpError.Message != "" {
		return fmt.Sprintf("apiclient.http_status.%d: %s", httpError.StatusCode, httpError.Message)
	}
	return fmt.Sprintf("apiclient.http_status.%d", httpError.StatusCode)
}

func newHTTPError(statusCode int, body []byte) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    envelopeMessage(body),
		Body:       body,
	}
}

// StatusCode extracts the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var httpError *HTTPError
	if errors.As(err, &httpError) {
		return httpError.StatusCode
	}
	return 0
}

// ErrorMessage returns the backend-provided message when available, otherwise
// the error text.
func ErrorMessage(err error) string {
	if err == nil {
		return unexpectedErrorMessage
	}
	var httpError *HTTPError
	if errors.As(err, &httpError) && httpError.Message != "" {
		return httpError.Message
	}
	message := strings.TrimSpace(err.Error())
	if message == "" {
		return unexpectedErrorMessage
	}
	return message
}

// envelopeMessage reads the message field of an error body. Validation errors
// may carry a list of messages.
func envelopeMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Message) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(payload.Message, &single); err == nil {
		return strings.TrimSpace(single)
	}
	var multiple []string
	if err := json.Unmarshal(payload.Message, &multiple); err == nil {
		return strings.Join(multiple, "; ")
	}
	return ""
}
