package apiclient

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Retry reasons reported to OnRetry.
const (
	ReasonRateLimited  = "rate_limited"
	ReasonUnauthorized = "unauthorized"
)

// CredentialSource supplies the bearer credential and renews it on demand.
type CredentialSource interface {
	Credential() string
	Refresh(ctx context.Context) (string, error)
}

// RetryPolicy bounds the wait-and-retry loop for rate-limited responses.
// A negative MaxRetries retries forever.
type RetryPolicy struct {
	Backoff    time.Duration
	Multiplier float64
	MaxRetries int
}

// DefaultRetryPolicy waits 3s, doubling each time, for at most five retries.
var DefaultRetryPolicy = RetryPolicy{Backoff: 3 * time.Second, Multiplier: 2, MaxRetries: 5}

func (p RetryPolicy) allows(attempt int) bool {
	return p.MaxRetries < 0 || attempt < p.MaxRetries
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.Backoff
	if p.Multiplier <= 1 {
		return d
	}
	for range attempt {
		d = time.Duration(float64(d) * p.Multiplier)
		if d > time.Minute {
			return time.Minute
		}
	}
	return d
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	Source  CredentialSource
	Policy  RetryPolicy
	Timeout time.Duration
	Logger  *slog.Logger
	OnRetry func(reason string)
	Sleep   func(ctx context.Context, d time.Duration) error
}

// Pipeline is the authenticated request path to the backend. It attaches the
// bearer credential, waits out rate limiting and renews the credential once per
// request on 401.
type Pipeline struct {
	base    http.RoundTripper
	source  CredentialSource
	policy  RetryPolicy
	timeout time.Duration
	logger  *slog.Logger
	onRetry func(string)
	sleep   func(context.Context, time.Duration) error
}

// NewPipeline wraps base. Wrapping an existing Pipeline returns it unchanged.
func NewPipeline(base http.RoundTripper, opts PipelineOptions) *Pipeline {
	if p, ok := base.(*Pipeline); ok {
		return p
	}
	if base == nil {
		base = http.DefaultTransport
	}
	if opts.Policy == (RetryPolicy{}) {
		opts.Policy = DefaultRetryPolicy
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Pipeline{
		base:    base,
		source:  opts.Source,
		policy:  opts.Policy,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		onRetry: opts.OnRetry,
		sleep:   opts.Sleep,
	}
}

// RoundTrip implements http.RoundTripper.
func (p *Pipeline) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if err := replayable(req); err != nil {
		return nil, err
	}
	ctx := req.Context()
	rateLimited := 0
	retried := false
	for {
		sent := p.credential()
		resp, err := p.send(req, sent)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests && p.policy.allows(rateLimited):
			wait := p.policy.delay(rateLimited)
			rateLimited++
			p.logger.Warn("upstream rate limited, retrying",
				slog.String("path", req.URL.Path), slog.Int("attempt", rateLimited), slog.Duration("wait", wait))
			discard(resp)
			p.retrying(ReasonRateLimited)
			if err := p.sleep(ctx, wait); err != nil {
				return nil, err
			}
		case resp.StatusCode == http.StatusUnauthorized && !retried && p.source != nil:
			retried = true
			// Another request may already have renewed the credential.
			if current := p.source.Credential(); current == "" || current == sent {
				if _, err := p.source.Refresh(ctx); err != nil {
					p.logger.Info("upstream request unauthorized, refresh failed",
						slog.String("path", req.URL.Path), slog.Any("error", err))
					return resp, nil
				}
			}
			discard(resp)
			p.retrying(ReasonUnauthorized)
		default:
			return resp, nil
		}
	}
}

func (p *Pipeline) credential() string {
	if p.source == nil {
		return ""
	}
	return p.source.Credential()
}

func (p *Pipeline) send(req *http.Request, bearer string) (*http.Response, error) {
	ctx := req.Context()
	cancel := context.CancelFunc(func() {})
	if p.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
	}
	out := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			cancel()
			return nil, err
		}
		out.Body = body
	}
	if bearer != "" {
		out.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		out.Header.Del("Authorization")
	}
	resp, err := p.base.RoundTrip(out)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (p *Pipeline) retrying(reason string) {
	if p.onRetry != nil {
		p.onRetry(reason)
	}
}

// replayable makes sure req's body can be sent more than once.
func replayable(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return err
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
