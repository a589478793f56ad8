// Package dashboard serves the signed-in pages: the role dashboard, the
// role-scoped resource listings and the JSON session summary.
package dashboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/propertyhub/propertyhub/internal/apiclient"
	"github.com/propertyhub/propertyhub/internal/gateway"
	"github.com/propertyhub/propertyhub/internal/rbac"
	"github.com/propertyhub/propertyhub/internal/session"
	"github.com/propertyhub/propertyhub/internal/shared"
	"github.com/propertyhub/propertyhub/internal/view"
)

// Handler serves the dashboard pages.
type Handler struct {
	logger      *slog.Logger
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	rbac        rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager, guard rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, templates: templates, csrfManager: csrf, rbac: guard}
}

// section is one UI route bound to the role and resource it lists.
type section struct {
	path     string
	role     rbac.Role
	resource rbac.Resource
}

// sections lists every role route except the shared dashboard, in a stable order.
func sections() []section {
	var out []section
	for _, role := range rbac.Roles() {
		for resource, path := range rbac.Profile(role).Routes {
			if resource == rbac.ResourceDashboard {
				continue
			}
			out = append(out, section{path: path, role: role, resource: resource})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

// MountRoutes registers dashboard routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/api/session", h.session)

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated())
		r.Get("/", h.home)
		r.Get(rbac.DashboardPath, h.dashboard)
		r.Get("/api/resources/{resource}", h.resourceJSON)
	})

	for _, s := range sections() {
		s := s
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireRoles(s.role))
			r.With(h.rbac.RequirePermission(s.resource, rbac.ActionRead)).Get(s.path, h.list(s))
			r.With(h.rbac.RequirePermission(s.resource, rbac.ActionDelete)).Post(s.path+"/{id}/delete", h.remove(s))
		})
	}
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	ws := gateway.FromContext(r.Context())
	http.Redirect(w, r, rbac.Profile(ws.Store.Role()).Home, http.StatusSeeOther)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	ws := gateway.FromContext(r.Context())
	role := ws.Store.Role()
	page := view.DashboardPage{Config: ws.Store.DashboardConfig()}
	if page.Config["showSystemStats"] {
		raw, err := ws.Resources.List(r.Context(), role, rbac.ResourceDashboard)
		if err != nil && signedOut(ws) {
			h.toLogin(w, r, r.URL.RequestURI())
			return
		}
		if err != nil {
			h.logger.Warn("dashboard stats", slog.Any("error", err))
			page.StatsError = "Statistics are unavailable right now."
		} else {
			page.Stats = indent(raw)
		}
	}
	h.render(w, r, http.StatusOK, "pages/dashboard.html", "Dashboard", page)
}

func (h *Handler) list(s section) http.HandlerFunc {
	heading := headingFor(s.resource)
	return func(w http.ResponseWriter, r *http.Request) {
		ws := gateway.FromContext(r.Context())
		page := view.ResourcePage{Heading: heading, Resource: string(s.resource)}
		raw, err := ws.Resources.List(r.Context(), s.role, s.resource)
		if err != nil && signedOut(ws) {
			h.toLogin(w, r, r.URL.RequestURI())
			return
		}
		switch {
		case errors.Is(err, apiclient.ErrNoEndpoint):
			page.Error = "This section is not available yet."
		case err != nil:
			h.logger.Warn("list resource", slog.String("resource", string(s.resource)), slog.Any("error", err))
			page.Error = upstreamMessage(err)
		default:
			var rows []view.Row
			page.Columns, rows, err = tabulate(raw)
			if err != nil {
				h.logger.Warn("tabulate resource", slog.String("resource", string(s.resource)), slog.Any("error", err))
				page.Error = "Unexpected response from the server."
				break
			}
			page.Pagination = shared.NewPagination(shared.PageFromQuery(r.URL.Query()), shared.DefaultPerPage, len(rows))
			start, end := page.Pagination.Bounds()
			page.Rows = rows[start:end]
		}
		h.render(w, r, http.StatusOK, "pages/resource.html", heading, page)
	}
}

func (h *Handler) remove(s section) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := gateway.FromContext(r.Context())
		id := chi.URLParam(r, "id")
		err := ws.Resources.Delete(r.Context(), s.role, s.resource, id)
		switch {
		case err != nil && signedOut(ws):
			h.toLogin(w, r, s.path)
			return
		case err != nil:
			h.logger.Warn("delete resource", slog.String("resource", string(s.resource)), slog.String("id", id), slog.Any("error", err))
			shared.Flash(r.Context(), "error", upstreamMessage(err))
		default:
			shared.Flash(r.Context(), "success", "Deleted.")
		}
		http.Redirect(w, r, s.path, http.StatusSeeOther)
	}
}

// signedOut reports whether a failed upstream call ended the session: the
// credential was rejected and could not be renewed.
func signedOut(ws *gateway.Workspace) bool {
	return !ws.Store.Snapshot().Authenticated()
}

// toLogin sends the user to sign in again, returning to next afterwards.
func (h *Handler) toLogin(w http.ResponseWriter, r *http.Request, next string) {
	shared.Flash(r.Context(), "error", session.MessageSessionExpired)
	http.Redirect(w, r, h.rbac.LoginURL(next), http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	td := gateway.Page(r, h.csrfManager, title, data)
	if err := h.templates.RenderStatus(w, status, name, td); err != nil {
		h.logger.Error("render", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func indent(raw json.RawMessage) []byte {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return raw
	}
	return out.Bytes()
}

func upstreamMessage(err error) string {
	var statusErr *apiclient.StatusError
	switch {
	case errors.Is(err, rbac.ErrNotPermitted):
		return "You do not have permission to do that."
	case errors.As(err, &statusErr) && statusErr.Message != "":
		return statusErr.Message
	default:
		return "The server could not complete the request. Please try again."
	}
}
