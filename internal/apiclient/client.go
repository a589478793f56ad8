package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBody = 8 << 20

// NewTransport returns the instrumented base transport for backend calls.
func NewTransport() http.RoundTripper {
	return otelhttp.NewTransport(http.DefaultTransport.(*http.Transport).Clone())
}

// NewHTTPClient returns a client whose transport is the Pipeline built from
// base. The pipeline enforces per-attempt timeouts, so the client has none.
func NewHTTPClient(base http.RoundTripper, jar http.CookieJar, opts PipelineOptions) *http.Client {
	return &http.Client{Transport: NewPipeline(base, opts), Jar: jar}
}

// backend issues JSON requests relative to a base URL.
type backend struct {
	baseURL *url.URL
	client  *http.Client
}

func newBackend(rawURL string, client *http.Client) (backend, error) {
	u, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return backend{}, fmt.Errorf("apiclient: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return backend{}, fmt.Errorf("apiclient: base url %q must be absolute", rawURL)
	}
	return backend{baseURL: u, client: client}, nil
}

func (b backend) url(path string) string {
	return b.baseURL.String() + APIPath(path)
}

// do sends body as JSON and returns the raw response body of a 2xx answer.
func (b backend) do(ctx context.Context, method, path, bearer string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("apiclient: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.url(path), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
}
