package apiclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 64 << 10

// StatusError reports a non-2xx backend response.
type StatusError struct {
	Status  int
	Method  string
	Path    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("apiclient: %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("apiclient: %s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// StatusCode returns the HTTP status.
func (e *StatusError) StatusCode() int { return e.Status }

// UpstreamMessage returns the backend's message, if any.
func (e *StatusError) UpstreamMessage() string { return e.Message }

func statusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	err := &StatusError{Status: resp.StatusCode}
	if resp.Request != nil {
		err.Method = resp.Request.Method
		err.Path = resp.Request.URL.Path
	}
	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		err.Message = strings.TrimSpace(payload.Message)
		if err.Message == "" {
			var text string
			if json.Unmarshal(payload.Error, &text) == nil {
				err.Message = strings.TrimSpace(text)
			}
		}
	}
	return err
}
