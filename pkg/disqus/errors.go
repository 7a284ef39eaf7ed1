package disqus

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const transportErrorMessage = "error querying the Disqus API"

var ErrMalformedResponse = errors.New("malformed disqus response")

// APIError is returned for every failed call that produced no usable
// envelope payload. Code prefers the remote service's own code, then the
// HTTP status, then 0.
type APIError struct {
	Method     string
	Message    string
	Code       int
	StatusCode int
	Header     http.Header
	Body       json.RawMessage
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("disqus: [%d]: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// DecodeError reports a 200 response whose body is not a valid envelope.
type DecodeError struct {
	Method     string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("disqus: %s: decode response: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("disqus: %s: decode response: missing succeeded field", e.Method)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// IsAPIError reports whether err carries an APIError and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

type envelope struct {
	Succeeded *bool           `json:"succeeded"`
	Message   json.RawMessage `json:"message"`
	Code      *int            `json:"code"`
}

func (e envelope) failureMessage() string {
	if len(e.Message) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(e.Message, &text); err == nil {
		return text
	}
	return string(e.Message)
}
