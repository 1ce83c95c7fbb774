package llm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownProvider is returned for a provider outside the supported set.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrUnexpectedResponse is returned when a successful response has no content field.
	ErrUnexpectedResponse = errors.New("unexpected response shape")
)

// APIError is an error reported by the provider, either through a non-2xx
// status or an error object in a successful response body. Status is zero in
// the second case.
type APIError struct {
	Provider Provider
	Status   int
	Message  string
	Body     []byte
}

// HTTPFailure reports whether the error came from a non-2xx status.
func (e *APIError) HTTPFailure() bool {
	return e.Status != 0
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if e.HTTPFailure() {
		if e.Message != "" {
			return fmt.Sprintf("%s returned HTTP %d: %s: body: %s", e.Provider, e.Status, e.Message, body)
		}
		return fmt.Sprintf("%s returned HTTP %d: body: %s", e.Provider, e.Status, body)
	}
	msg := e.Message
	if msg == "" {
		msg = body
	}
	return fmt.Sprintf("%s API error: %s", e.Provider, msg)
}

// TransportError is a failure to complete the HTTP exchange at all.
type TransportError struct {
	URL     string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("request to %s timed out: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
