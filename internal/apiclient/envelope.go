package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ErrEmptyBody is returned when a response carries no JSON payload.
var ErrEmptyBody = errors.New("apiclient: empty response body")

// UnwrapEnvelope returns the payload of a backend response. The backend either
// nests the payload one level under "data" or returns it bare; callers see the
// same payload in both cases. A "data" member that is null is treated as absent.
func UnwrapEnvelope(body []byte) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}
	if body[0] != '{' {
		if !json.Valid(body) {
			return nil, errors.New("apiclient: invalid JSON payload")
		}
		return json.RawMessage(body), nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return json.RawMessage(body), nil
	}
	return envelope.Data, nil
}

// AccessToken extracts access_token from an unwrapped payload.
func AccessToken(payload json.RawMessage) string {
	var grant struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(payload, &grant); err != nil {
		return ""
	}
	return strings.TrimSpace(grant.AccessToken)
}

// APIPath maps a backend path to its versioned form. Tenant and maintenance
// team endpoints live outside /api/v1.
func APIPath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/tenant/") || strings.HasPrefix(path, "/maintenanceTeam/") {
		return path
	}
	return "/api/v1" + path
}
