package persona

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Sentinel errors for common API failures. Use errors.Is() to check;
// the full server response is available via errors.As with *APIError.
var (
	ErrNotFound       = errors.New("persona: not found")
	ErrUnauthorized   = errors.New("persona: unauthorized")
	ErrInvalidRequest = errors.New("persona: invalid request")
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("persona: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

// Unwrap maps the HTTP status to a sentinel so callers can branch
// without inspecting codes.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusBadRequest:
		return ErrInvalidRequest
	default:
		return nil
	}
}

func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Code: "unknown", Message: resp.Status}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil {
		var payload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Code != "" {
			apiErr.Code = payload.Code
			apiErr.Message = payload.Message
		}
	}
	return apiErr
}
