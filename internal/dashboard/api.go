package dashboard

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/propertyhub/propertyhub/internal/apiclient"
	"github.com/propertyhub/propertyhub/internal/credential"
	"github.com/propertyhub/propertyhub/internal/gateway"
	"github.com/propertyhub/propertyhub/internal/platform/httpx"
	"github.com/propertyhub/propertyhub/internal/rbac"
)

// SessionSummary is what script clients learn about the signed-in user.
type SessionSummary struct {
	Authenticated bool                            `json:"authenticated"`
	Loading       bool                            `json:"loading"`
	Error         string                          `json:"error,omitempty"`
	User          *credential.Identity            `json:"user,omitempty"`
	Role          rbac.Role                       `json:"role,omitempty"`
	RoleName      string                          `json:"role_name,omitempty"`
	FullName      string                          `json:"full_name,omitempty"`
	Home          string                          `json:"home,omitempty"`
	Dashboard     rbac.DashboardConfig            `json:"dashboard,omitempty"`
	Routes        map[rbac.Resource]string        `json:"routes,omitempty"`
	Navigation    []rbac.NavItem                  `json:"navigation,omitempty"`
	Resources     []rbac.Resource                 `json:"resources,omitempty"`
	Permissions   map[rbac.Resource][]rbac.Action `json:"permissions,omitempty"`
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	ws := gateway.FromContext(r.Context())
	if ws == nil {
		httpx.JSON(w, http.StatusOK, SessionSummary{})
		return
	}
	// Settle an expired credential before reporting on it.
	ws.Store.Current(r.Context())
	snap := ws.Store.Snapshot()
	summary := SessionSummary{Loading: snap.Loading, Error: snap.Err}
	if !snap.Authenticated() {
		httpx.JSON(w, http.StatusOK, summary)
		return
	}
	role := snap.Identity.Role
	summary.Authenticated = true
	summary.User = snap.Identity
	summary.Role = role
	summary.RoleName = rbac.DisplayName(role)
	summary.FullName = ws.Store.FullName()
	summary.Home = rbac.Profile(role).Home
	summary.Dashboard = ws.Store.DashboardConfig()
	summary.Routes = ws.Store.Routes()
	summary.Navigation = ws.Store.Navigation()
	summary.Resources = rbac.Resources(role)
	summary.Permissions = rbac.Grants(role)
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) resourceJSON(w http.ResponseWriter, r *http.Request) {
	ws := gateway.FromContext(r.Context())
	resource := rbac.Resource(chi.URLParam(r, "resource"))
	raw, err := ws.Resources.List(r.Context(), ws.Store.Role(), resource)
	if err != nil && signedOut(ws) {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", ws.Store.Snapshot().Err)
		return
	}
	if err != nil {
		h.problem(w, err)
		return
	}
	httpx.Raw(w, http.StatusOK, raw)
}

func (h *Handler) problem(w http.ResponseWriter, err error) {
	var statusErr *apiclient.StatusError
	switch {
	case errors.Is(err, rbac.ErrNotPermitted):
		httpx.RespondError(w, errors.Join(httpx.ErrForbidden, err))
	case errors.Is(err, apiclient.ErrNoEndpoint):
		httpx.RespondError(w, errors.Join(httpx.ErrNotFound, err))
	case errors.As(err, &statusErr) && statusErr.Status < http.StatusInternalServerError:
		httpx.Problem(w, statusErr.Status, http.StatusText(statusErr.Status), statusErr.Message)
	default:
		h.logger.Warn("upstream request", slog.Any("error", err))
		httpx.RespondError(w, errors.Join(httpx.ErrUpstream, err))
	}
}
