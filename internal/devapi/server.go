// Package devapi is an in-memory stand-in for the property-management
// backend. It speaks the same wire shapes as the real service so the gateway
// and the CLI can be exercised end to end without external infrastructure.
package devapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/propertyhub/propertyhub/internal/apiclient"
	"github.com/propertyhub/propertyhub/internal/credential"
	"github.com/propertyhub/propertyhub/internal/rbac"
)

// Config tunes the development backend.
type Config struct {
	Secret         string
	TokenTTL       time.Duration
	RenewalTTL     time.Duration
	SeedPassword   string
	LoginRateLimit int
	// BcryptCost defaults to bcrypt.DefaultCost; tests lower it.
	BcryptCost int
	Now        func() time.Time
}

// Server serves the backend API.
type Server struct {
	cfg       Config
	logger    *slog.Logger
	issuer    *credential.Issuer
	mem       *memory
	validator *validator.Validate
}

// New builds a Server and seeds one account per role when SeedPassword is set.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 15 * time.Minute
	}
	if cfg.RenewalTTL <= 0 {
		cfg.RenewalTTL = 7 * 24 * time.Hour
	}
	if cfg.LoginRateLimit <= 0 {
		cfg.LoginRateLimit = 20
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 10
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	issuer, err := credential.NewIssuer(cfg.Secret, cfg.TokenTTL, cfg.Now)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "devapi")),
		issuer:    issuer,
		mem:       newMemory(cfg.BcryptCost),
		validator: validator.New(),
	}
	if cfg.SeedPassword != "" {
		if err := s.seed(cfg.SeedPassword); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Issuer exposes the signing issuer, mainly for tests minting credentials.
func (s *Server) Issuer() *credential.Issuer {
	return s.issuer
}

// AddUser registers an account directly.
func (s *Server) AddUser(u User, password string) (User, error) {
	return s.mem.addUser(u, password)
}

// Routes returns the backend's HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	limited := r.With(httprate.LimitByIP(s.cfg.LoginRateLimit, time.Minute))
	limited.Post(apiclient.APIPath("/login"), s.login)
	limited.Post(apiclient.APIPath("/register"), s.register)
	r.Post(apiclient.APIPath("/refresh-token"), s.refresh)
	r.Post(apiclient.APIPath("/logout"), s.logout)

	mounted := make(map[string]struct{})
	for _, role := range rbac.Roles() {
		for resource, path := range rbac.Profile(role).Endpoints {
			full := apiclient.APIPath(path)
			if _, dup := mounted[full]; dup {
				continue
			}
			mounted[full] = struct{}{}
			s.mountResource(r, full, role, resource)
		}
	}
	return r
}

func (s *Server) mountResource(r chi.Router, path string, owner rbac.Role, resource rbac.Resource) {
	guard := s.requireBearer(owner)
	if resource == rbac.ResourceDashboard {
		r.With(guard(resource, rbac.ActionRead)).Get(path, s.stats)
		return
	}
	h := resourceHandler{srv: s, resource: resource}
	r.With(guard(resource, rbac.ActionRead)).Get(path, h.list)
	r.With(guard(resource, rbac.ActionCreate)).Post(path, h.create)
	r.With(guard(resource, rbac.ActionRead)).Get(path+"/{id}", h.get)
	r.With(guard(resource, rbac.ActionUpdate)).Put(path+"/{id}", h.update)
	r.With(guard(resource, rbac.ActionDelete)).Delete(path+"/{id}", h.remove)
}

func (s *Server) seed(password string) error {
	accounts := []User{
		{Username: "admin", Email: "admin@propertyhub.local", FirstName: "Ada", LastName: "Admin", Role: rbac.RoleAdmin},
		{Username: "landlord", Email: "landlord@propertyhub.local", FirstName: "Lena", LastName: "Lord", Role: rbac.RoleLandlord},
		{Username: "tenant", Email: "tenant@propertyhub.local", FirstName: "Tom", LastName: "Tenant", Role: rbac.RoleTenant},
		{Username: "maintenance", Email: "maintenance@propertyhub.local", FirstName: "Max", Role: rbac.RoleMaintenanceTeam},
	}
	for _, u := range accounts {
		if _, err := s.mem.addUser(u, password); err != nil && !errors.Is(err, errDuplicate) {
			return err
		}
	}
	s.mem.put(rbac.ResourceProperties, 0, Record{"name": "Harbour View", "city": "Leeds", "units": 12})
	s.mem.put(rbac.ResourceProperties, 0, Record{"name": "Elm Court", "city": "York", "units": 4})
	s.mem.put(rbac.ResourceLeases, 0, Record{"property_id": 1, "tenant": "tenant", "status": "active"})
	s.mem.put(rbac.ResourceMaintenance, 0, Record{"property_id": 1, "title": "Leaking tap", "status": "open"})
	s.mem.put(rbac.ResourceInvoices, 0, Record{"lease_id": 1, "amount": 950, "status": "due"})
	s.mem.put(rbac.ResourceExpenses, 0, Record{"property_id": 2, "amount": 120, "category": "repairs"})
	return nil
}
