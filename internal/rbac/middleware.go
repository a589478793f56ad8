package rbac

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/propertyhub/propertyhub/internal/platform/httpx"
)

// Resolver settles the session attached to r and returns its principal. It
// reports false when the request is unauthenticated.
type Resolver func(r *http.Request) (Principal, bool)

// Middleware wires the access guard for HTTP handlers.
type Middleware struct {
	Resolve      Resolver
	Logger       *slog.Logger
	LoginPath    string
	FallbackPath string
}

// RequireAuthenticated only checks that a principal is present.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return m.guard("authenticated", func(Role) bool { return true })
}

// RequireRoles admits principals whose role is one of roles. An empty list
// admits every authenticated principal.
func (m Middleware) RequireRoles(roles ...Role) func(http.Handler) http.Handler {
	allowed := append([]Role(nil), roles...)
	return m.guard("roles", func(role Role) bool {
		return len(allowed) == 0 || HasAnyRole(role, allowed...)
	})
}

// RequirePermission admits principals whose role may perform action on resource.
func (m Middleware) RequirePermission(resource Resource, action Action) func(http.Handler) http.Handler {
	return m.guard(string(resource)+"."+string(action), func(role Role) bool {
		return HasPermission(role, resource, action)
	})
}

func (m Middleware) guard(rule string, allow func(Role) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := m.principal(r)
			if !ok {
				m.unauthenticated(w, r)
				return
			}
			role := principal.GetRole()
			if allow(role) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("rbac denied", slog.String("rule", rule), slog.String("role", string(role)), slog.String("path", r.URL.Path))
			}
			m.forbidden(w, r)
		})
	}
}

func (m Middleware) principal(r *http.Request) (Principal, bool) {
	if m.Resolve == nil {
		return nil, false
	}
	principal, ok := m.Resolve(r)
	if !ok || principal == nil {
		return nil, false
	}
	return principal, true
}

func (m Middleware) unauthenticated(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	http.Redirect(w, r, m.LoginURL(r.URL.RequestURI()), http.StatusSeeOther)
}

func (m Middleware) forbidden(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", ErrNotPermitted.Error())
		return
	}
	fallback := m.FallbackPath
	if fallback == "" {
		fallback = DashboardPath
	}
	// A fallback that is itself forbidden would loop; answer directly instead.
	if r.URL.Path == fallback {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	http.Redirect(w, r, fallback, http.StatusSeeOther)
}

// LoginURL is where a signed-out user is sent, returning to next afterwards.
func (m Middleware) LoginURL(next string) string {
	return LoginRedirect(m.loginPath(), next)
}

func (m Middleware) loginPath() string {
	if m.LoginPath == "" {
		return "/login"
	}
	return m.LoginPath
}

// LoginRedirect builds the login URL that returns the user to next afterwards.
func LoginRedirect(loginPath, next string) string {
	next = SafeNext(next)
	if next == "" {
		return loginPath
	}
	return loginPath + "?next=" + url.QueryEscape(next)
}

// SafeNext returns next when it is a local absolute path, otherwise "".
func SafeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return ""
	}
	return next
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
