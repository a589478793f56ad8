package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/propertyhub/propertyhub/internal/gateway"
	"github.com/propertyhub/propertyhub/internal/observability"
	"github.com/propertyhub/propertyhub/internal/rbac"
	"github.com/propertyhub/propertyhub/internal/session"
	"github.com/propertyhub/propertyhub/internal/shared"
	"github.com/propertyhub/propertyhub/internal/view"
)

// Handler wires the sign-in, registration and sign-out pages to the session
// store of the caller's workspace.
type Handler struct {
	logger         *slog.Logger
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	registry       *gateway.Registry
	metrics        *observability.Metrics
	validator      *validator.Validate
	attemptLimit   int
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, registry *gateway.Registry, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		registry:       registry,
		metrics:        metrics,
		validator:      validator.New(),
		attemptLimit:   10,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	limit := httprate.LimitByIP(h.attemptLimit, time.Minute)
	r.Get("/login", h.showLogin)
	r.With(limit).Post("/login", h.handleLogin)
	r.Get("/register", h.showRegister)
	r.With(limit).Post("/register", h.handleRegister)
	r.Post("/logout", h.handleLogout)
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if ws := gateway.FromContext(r.Context()); ws != nil && ws.Store.Snapshot().Authenticated() {
		http.Redirect(w, r, rbac.DashboardPath, http.StatusSeeOther)
		return
	}
	page := view.LoginPage{Next: rbac.SafeNext(r.URL.Query().Get("next"))}
	h.render(w, r, http.StatusOK, "pages/login.html", "Sign in", page)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ws := gateway.FromContext(r.Context())
	if ws == nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		Login:    strings.TrimSpace(r.PostFormValue("login")),
		Password: r.PostFormValue("password"),
	}
	page := view.LoginPage{Login: form.Login, Next: rbac.SafeNext(r.PostFormValue("next"))}
	if errs := h.validate(form); len(errs) > 0 {
		page.Errors = errs
		h.render(w, r, http.StatusBadRequest, "pages/login.html", "Sign in", page)
		return
	}

	result, err := ws.Store.Login(r.Context(), form.request())
	if err != nil {
		page.Error = h.authFailure(err)
		h.render(w, r, statusFor(err), "pages/login.html", "Sign in", page)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	h.csrfManager.RotateToken(sess)
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back, " + result.Identity.Name})
	h.logger.Info("user signed in", slog.Int64("user_id", result.Identity.ID), slog.String("role", string(result.Identity.Role)))

	target := page.Next
	if target == "" {
		target = rbac.DashboardPath
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) showRegister(w http.ResponseWriter, r *http.Request) {
	page := view.RegisterPage{Form: view.RegisterForm{Role: string(rbac.RoleTenant)}, Roles: roleOptions()}
	h.render(w, r, http.StatusOK, "pages/register.html", "Register", page)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ws := gateway.FromContext(r.Context())
	if ws == nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := registerForm{
		Username:  strings.TrimSpace(r.PostFormValue("username")),
		Email:     strings.TrimSpace(r.PostFormValue("email")),
		Password:  r.PostFormValue("password"),
		FirstName: strings.TrimSpace(r.PostFormValue("first_name")),
		LastName:  strings.TrimSpace(r.PostFormValue("last_name")),
		Phone:     strings.TrimSpace(r.PostFormValue("phone")),
		Role:      strings.TrimSpace(r.PostFormValue("role")),
	}
	page := view.RegisterPage{Form: form.echo(), Roles: roleOptions()}
	if errs := h.validate(form); len(errs) > 0 {
		page.Errors = errs
		h.render(w, r, http.StatusBadRequest, "pages/register.html", "Register", page)
		return
	}

	result, err := ws.Store.Register(r.Context(), form.request())
	if err != nil {
		page.Error = h.authFailure(err)
		h.render(w, r, statusFor(err), "pages/register.html", "Register", page)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if result.Identity.Role == "" {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Registration successful. Please sign in."})
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	h.csrfManager.RotateToken(sess)
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome, " + result.Identity.Name})
	http.Redirect(w, r, rbac.DashboardPath, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if ws := gateway.FromContext(r.Context()); ws != nil {
		ws.Store.Logout(r.Context())
	}
	if sess != nil {
		h.registry.Forget(sess.ID)
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) validate(form any) map[string]string {
	errs := make(map[string]string)
	err := h.validator.Struct(form)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fieldErr := range fieldErrs {
			errs[fieldErr.Field()] = fieldMessage(fieldErr)
		}
	}
	return errs
}

func (h *Handler) authFailure(err error) string {
	var authErr *session.AuthError
	if !errors.As(err, &authErr) {
		h.logger.Error("authentication", slog.Any("error", err))
		return "Something went wrong. Please try again."
	}
	h.metrics.ObserveAuthFailure(string(authErr.Kind))
	return authErr.Message
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	td := gateway.Page(r, h.csrfManager, title, data)
	if status >= http.StatusBadRequest {
		if msg := pageError(data); msg != "" {
			td.Flash = &shared.FlashMessage{Kind: "error", Message: msg}
		}
	}
	if err := h.templates.RenderStatus(w, status, name, td); err != nil {
		h.logger.Error("render", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func statusFor(err error) int {
	var authErr *session.AuthError
	if !errors.As(err, &authErr) {
		return http.StatusInternalServerError
	}
	switch authErr.Kind {
	case session.KindInvalidCredentials:
		return http.StatusUnauthorized
	case session.KindRateLimited:
		return http.StatusTooManyRequests
	case session.KindServerError, session.KindNetwork, session.KindNoToken, session.KindSessionExpired:
		return http.StatusBadGateway
	case session.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func pageError(data any) string {
	switch page := data.(type) {
	case view.LoginPage:
		return page.Error
	case view.RegisterPage:
		return page.Error
	}
	return ""
}
