package scoringapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrTransport matches every failure where no HTTP response was received.
var ErrTransport = errors.New("scoring api unreachable")

// APIError is a non-2xx response from the scoring API.
type APIError struct {
	Status   int
	Detail   string
	Messages []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scoring api: %d: %s", e.Status, e.DetailText())
}

// StatusCode returns the HTTP status.
func (e *APIError) StatusCode() int { return e.Status }

// DetailText is the human-readable explanation: the detail string, or the
// validation messages joined with "; ".
func (e *APIError) DetailText() string {
	if len(e.Messages) > 0 {
		return strings.Join(e.Messages, "; ")
	}
	if e.Detail != "" {
		return e.Detail
	}
	if t := http.StatusText(e.Status); t != "" {
		return t
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

// TransportError wraps a request that failed before a response arrived.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("scoring api %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransport) match.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Transport marks the error as a connectivity failure.
func (e *TransportError) Transport() bool { return true }

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// decodeError builds an APIError from a response body. The body may carry
// {"detail": "text"}, {"detail": [{"msg": "..."}]}, {"message": "..."} or
// anything else, in which case the raw text is used.
func decodeError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		apiErr.Detail = strings.TrimSpace(string(body))
		return apiErr
	}

	if len(envelope.Detail) > 0 {
		var text string
		if err := json.Unmarshal(envelope.Detail, &text); err == nil {
			apiErr.Detail = text
			return apiErr
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(envelope.Detail, &items); err == nil {
			for _, it := range items {
				if it.Msg != "" {
					apiErr.Messages = append(apiErr.Messages, it.Msg)
				}
			}
			return apiErr
		}
		apiErr.Detail = string(envelope.Detail)
		return apiErr
	}

	switch {
	case envelope.Message != "":
		apiErr.Detail = envelope.Message
	case envelope.Error != "":
		apiErr.Detail = envelope.Error
	}
	return apiErr
}
