package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/propertyhub/propertyhub/internal/rbac"
)

// ErrNoEndpoint is returned when a role has no backend endpoint for a resource.
var ErrNoEndpoint = errors.New("apiclient: no endpoint for role")

// Resources reads and writes role-scoped backend collections. Every call is
// checked against the permission table before any request leaves the process.
type Resources struct {
	backend
}

// NewResources builds a resource client over an authenticated client, usually
// one returned by NewHTTPClient.
func NewResources(baseURL string, client *http.Client) (*Resources, error) {
	b, err := newBackend(baseURL, client)
	if err != nil {
		return nil, err
	}
	return &Resources{backend: b}, nil
}

// List fetches the collection of resource visible to role.
func (c *Resources) List(ctx context.Context, role rbac.Role, resource rbac.Resource) (json.RawMessage, error) {
	path, err := c.endpoint(role, resource, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Get fetches one record.
func (c *Resources) Get(ctx context.Context, role rbac.Role, resource rbac.Resource, id string) (json.RawMessage, error) {
	path, err := c.endpoint(role, resource, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodGet, path+"/"+url.PathEscape(id), nil)
}

// Create posts a new record.
func (c *Resources) Create(ctx context.Context, role rbac.Role, resource rbac.Resource, body any) (json.RawMessage, error) {
	path, err := c.endpoint(role, resource, rbac.ActionCreate)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodPost, path, body)
}

// Update replaces a record.
func (c *Resources) Update(ctx context.Context, role rbac.Role, resource rbac.Resource, id string, body any) (json.RawMessage, error) {
	path, err := c.endpoint(role, resource, rbac.ActionUpdate)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodPut, path+"/"+url.PathEscape(id), body)
}

// Delete removes a record.
func (c *Resources) Delete(ctx context.Context, role rbac.Role, resource rbac.Resource, id string) error {
	path, err := c.endpoint(role, resource, rbac.ActionDelete)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodDelete, path+"/"+url.PathEscape(id), "", nil)
	return err
}

// Do sends an arbitrary request and returns the unwrapped payload.
func (c *Resources) Do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	raw, err := c.do(ctx, method, path, "", body)
	if err != nil {
		return nil, err
	}
	return UnwrapEnvelope(raw)
}

func (c *Resources) endpoint(role rbac.Role, resource rbac.Resource, action rbac.Action) (string, error) {
	if err := rbac.Authorize(role, resource, action); err != nil {
		return "", err
	}
	path, ok := rbac.Endpoint(role, resource)
	if !ok {
		return "", fmt.Errorf("%w: %s has no %s endpoint", ErrNoEndpoint, role, resource)
	}
	return path, nil
}
