package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/propertyhub/propertyhub/internal/session"
)

// RenewalCookie is the cookie carrying the renewal secret.
const RenewalCookie = "refresh_token"

// AuthAPI implements session.Authenticator over HTTP. Its requests bypass the
// Pipeline so a failed renewal cannot trigger another one.
type AuthAPI struct {
	backend
	jar http.CookieJar
}

var _ session.Authenticator = (*AuthAPI)(nil)

// NewAuthAPI builds the authentication client. A nil jar gets a fresh one.
func NewAuthAPI(baseURL string, base http.RoundTripper, jar http.CookieJar, timeout time.Duration) (*AuthAPI, error) {
	if jar == nil {
		var err error
		if jar, err = cookiejar.New(nil); err != nil {
			return nil, err
		}
	}
	if base == nil {
		base = NewTransport()
	}
	b, err := newBackend(baseURL, &http.Client{Transport: base, Jar: jar, Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return &AuthAPI{backend: b, jar: jar}, nil
}

// Jar returns the cookie jar holding the renewal secret.
func (a *AuthAPI) Jar() http.CookieJar {
	return a.jar
}

// Login implements session.Authenticator.
func (a *AuthAPI) Login(ctx context.Context, req session.LoginRequest) (session.Grant, error) {
	return a.grant(ctx, "/login", req)
}

// Register implements session.Authenticator.
func (a *AuthAPI) Register(ctx context.Context, req session.RegisterRequest) (session.Grant, error) {
	return a.grant(ctx, "/register", req)
}

// Refresh implements session.Authenticator.
func (a *AuthAPI) Refresh(ctx context.Context) (session.Grant, error) {
	return a.grant(ctx, "/refresh-token", struct{}{})
}

// Logout implements session.Authenticator.
func (a *AuthAPI) Logout(ctx context.Context, credential string) error {
	_, err := a.do(ctx, http.MethodPost, "/logout", credential, nil)
	return err
}

// ExpireRenewalSecret drops the renewal cookie from the jar.
func (a *AuthAPI) ExpireRenewalSecret() {
	a.jar.SetCookies(a.baseURL, []*http.Cookie{{Name: RenewalCookie, Value: "", Path: "/", MaxAge: -1}})
}

func (a *AuthAPI) grant(ctx context.Context, path string, body any) (session.Grant, error) {
	raw, err := a.do(ctx, http.MethodPost, path, "", body)
	if err != nil {
		return session.Grant{}, err
	}
	payload, err := UnwrapEnvelope(raw)
	if err != nil {
		return session.Grant{}, fmt.Errorf("apiclient: %s response: %w", path, err)
	}
	return session.Grant{AccessToken: AccessToken(payload), Payload: json.RawMessage(payload)}, nil
}
