package devapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/propertyhub/propertyhub/internal/apiclient"
	"github.com/propertyhub/propertyhub/internal/credential"
	"github.com/propertyhub/propertyhub/internal/platform/httpx"
	"github.com/propertyhub/propertyhub/internal/rbac"
)

type envelope struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username  string    `json:"username" validate:"required,min=3,max=50"`
	Email     string    `json:"email" validate:"required,email"`
	Password  string    `json:"password" validate:"required,min=8"`
	FirstName string    `json:"first_name" validate:"max=100"`
	LastName  string    `json:"last_name" validate:"max=100"`
	Phone     string    `json:"phone" validate:"max=30"`
	Role      rbac.Role `json:"role" validate:"required"`
}

type userPatch struct {
	FirstName *string    `json:"first_name"`
	LastName  *string    `json:"last_name"`
	Phone     *string    `json:"phone"`
	Role      *rbac.Role `json:"role"`
}

func (s *Server) ok(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data, Timestamp: s.cfg.Now().UTC()})
}

func (s *Server) fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message, Error: message, Timestamp: s.cfg.Now().UTC()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	httpx.JSON(w, status, body)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		return
	}
	login := strings.TrimSpace(req.Email)
	if login == "" {
		login = strings.TrimSpace(req.Username)
	}
	if login == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username and Password are required"})
		return
	}
	user, err := s.mem.authenticate(login, req.Password)
	if err != nil {
		s.logger.Info("login rejected", slog.String("login", login))
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}
	token, err := s.issue(user)
	if err != nil {
		s.logger.Error("issue credential", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error generating access token"})
		return
	}
	renewal := s.mem.issueRenewal(user.ID, s.cfg.RenewalTTL, s.cfg.Now())
	http.SetCookie(w, &http.Cookie{
		Name:     apiclient.RenewalCookie,
		Value:    renewal,
		Path:     "/",
		MaxAge:   int(s.cfg.RenewalTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{
		"message":      "Login successful",
		"access_token": token,
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if err := s.validator.Struct(req); err != nil || !rbac.IsValidRole(req.Role) {
		s.fail(w, http.StatusBadRequest, "Invalid user data")
		return
	}
	user, err := s.mem.addUser(User{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Role:      req.Role,
	}, req.Password)
	switch {
	case errors.Is(err, errDuplicate):
		s.fail(w, http.StatusConflict, "Username or email already exists")
		return
	case err != nil:
		s.logger.Error("register", slog.Any("error", err))
		s.fail(w, http.StatusInternalServerError, "Error creating user")
		return
	}
	s.logger.Info("user registered", slog.Int64("user_id", user.ID), slog.String("role", string(user.Role)))
	s.ok(w, http.StatusCreated, "User registered successfully", user)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(apiclient.RenewalCookie)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Refresh token not found"})
		return
	}
	userID, err := s.mem.redeemRenewal(cookie.Value, s.cfg.Now())
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid refresh token"})
		return
	}
	user, err := s.mem.user(userID)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "User not found"})
		return
	}
	token, err := s.issue(user)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to generate token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(apiclient.RenewalCookie); err == nil {
		s.mem.revokeRenewal(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     apiclient.RenewalCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	s.ok(w, http.StatusOK, "Logged out successfully", nil)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	s.ok(w, http.StatusOK, "", s.mem.counts())
}

func (s *Server) issue(u User) (string, error) {
	return s.issuer.Issue(credential.Identity{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	})
}

// requireBearer admits requests whose credential belongs to owner and whose
// role holds action on resource.
func (s *Server) requireBearer(owner rbac.Role) func(rbac.Resource, rbac.Action) func(http.Handler) http.Handler {
	return func(resource rbac.Resource, action rbac.Action) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
				if !found || raw == "" {
					s.fail(w, http.StatusUnauthorized, "Authorization header required")
					return
				}
				claims, err := s.issuer.Verify(raw)
				if err != nil {
					s.fail(w, http.StatusUnauthorized, "Invalid or expired token")
					return
				}
				role := rbac.Role(claims.Role)
				if role != owner || !rbac.HasPermission(role, resource, action) {
					s.fail(w, http.StatusForbidden, "Access denied")
					return
				}
				next.ServeHTTP(w, r)
			})
		}
	}
}

type resourceHandler struct {
	srv      *Server
	resource rbac.Resource
}

func (h resourceHandler) list(w http.ResponseWriter, r *http.Request) {
	if h.resource == rbac.ResourceUsers {
		h.srv.ok(w, http.StatusOK, "", h.srv.mem.listUsers())
		return
	}
	h.srv.ok(w, http.StatusOK, "", h.srv.mem.list(h.resource))
}

func (h resourceHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var (
		row any
		err error
	)
	if h.resource == rbac.ResourceUsers {
		row, err = h.srv.mem.user(id)
	} else {
		row, err = h.srv.mem.get(h.resource, id)
	}
	if err != nil {
		h.srv.fail(w, http.StatusNotFound, "Not found")
		return
	}
	h.srv.ok(w, http.StatusOK, "", row)
}

func (h resourceHandler) create(w http.ResponseWriter, r *http.Request) {
	if h.resource == rbac.ResourceUsers {
		h.srv.register(w, r)
		return
	}
	fields, ok := h.decode(w, r)
	if !ok {
		return
	}
	h.srv.ok(w, http.StatusCreated, "Created", h.srv.mem.put(h.resource, 0, fields))
}

func (h resourceHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	if h.resource == rbac.ResourceUsers {
		var patch userPatch
		if err := httpx.DecodeJSON(w, r, &patch); err != nil {
			h.srv.fail(w, http.StatusBadRequest, "Invalid request")
			return
		}
		if patch.Role != nil && !rbac.IsValidRole(*patch.Role) {
			h.srv.fail(w, http.StatusBadRequest, "Invalid role")
			return
		}
		user, err := h.srv.mem.updateUser(id, patch)
		if err != nil {
			h.srv.fail(w, http.StatusNotFound, "Not found")
			return
		}
		h.srv.ok(w, http.StatusOK, "Updated", user)
		return
	}
	fields, ok := h.decode(w, r)
	if !ok {
		return
	}
	if !h.srv.mem.exists(h.resource, id) {
		h.srv.fail(w, http.StatusNotFound, "Not found")
		return
	}
	h.srv.ok(w, http.StatusOK, "Updated", h.srv.mem.put(h.resource, id, fields))
}

func (h resourceHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var err error
	if h.resource == rbac.ResourceUsers {
		err = h.srv.mem.deleteUser(id)
	} else {
		err = h.srv.mem.remove(h.resource, id)
	}
	if err != nil {
		h.srv.fail(w, http.StatusNotFound, "Not found")
		return
	}
	h.srv.ok(w, http.StatusOK, "Deleted", nil)
}

func (h resourceHandler) id(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.srv.fail(w, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

func (h resourceHandler) decode(w http.ResponseWriter, r *http.Request) (Record, bool) {
	var fields Record
	if err := httpx.DecodeJSON(w, r, &fields); err != nil || fields == nil {
		h.srv.fail(w, http.StatusBadRequest, "Invalid request")
		return nil, false
	}
	delete(fields, "id")
	return fields, true
}
