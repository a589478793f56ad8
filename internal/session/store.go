package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/propertyhub/propertyhub/internal/credential"
	"github.com/propertyhub/propertyhub/internal/rbac"
)

// LoginRequest carries either an email or a username plus the password.
type LoginRequest struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

// RegisterRequest carries the fields of a new account.
type RegisterRequest struct {
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Role      rbac.Role `json:"role"`
}

// Grant is an unwrapped authentication response.
type Grant struct {
	AccessToken string
	Payload     json.RawMessage
}

// Authenticator talks to the backend authentication endpoints. Refresh relies
// on the renewal secret travelling out of band.
type Authenticator interface {
	Login(ctx context.Context, req LoginRequest) (Grant, error)
	Register(ctx context.Context, req RegisterRequest) (Grant, error)
	Refresh(ctx context.Context) (Grant, error)
	Logout(ctx context.Context, credential string) error
	ExpireRenewalSecret()
}

// Result is returned by Login and Register.
type Result struct {
	Identity credential.Identity
	Payload  json.RawMessage
}

// Snapshot is a consistent view of the session.
type Snapshot struct {
	Credential string               `json:"-"`
	Identity   *credential.Identity `json:"identity,omitempty"`
	Loading    bool                 `json:"loading"`
	Err        string               `json:"error,omitempty"`
}

// Authenticated reports whether the snapshot holds an identity.
func (s Snapshot) Authenticated() bool {
	return s.Identity != nil
}

// Options configures a Store.
type Options struct {
	Auth    Authenticator
	Storage Storage
	Decoder *credential.Decoder
	Logger  *slog.Logger
	// OnRefresh observes every renewal outcome; err is nil on success.
	OnRefresh func(err error)
}

// Store owns the credential and identity of one user session.
type Store struct {
	auth      Authenticator
	storage   Storage
	decoder   *credential.Decoder
	logger    *slog.Logger
	onRefresh func(error)

	mu         sync.RWMutex
	credential string
	identity   *credential.Identity
	loading    bool
	errMsg     string
	generation uint64

	persistMu sync.Mutex
	refresh   singleflight.Group

	subsMu  sync.Mutex
	subs    map[uint64]func(Snapshot)
	nextSub uint64
}

// NewStore builds a Store. It starts in the loading state until Restore runs.
func NewStore(opts Options) *Store {
	if opts.Storage == nil {
		opts.Storage = &MemoryStorage{}
	}
	if opts.Decoder == nil {
		opts.Decoder = credential.NewDecoder(time.Now)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		auth:      opts.Auth,
		storage:   opts.Storage,
		decoder:   opts.Decoder,
		logger:    opts.Logger,
		onRefresh: opts.OnRefresh,
		loading:   true,
		subs:      make(map[uint64]func(Snapshot)),
	}
}

// Restore loads the persisted credential. An undecodable or expired
// credential ends in a forced logout.
func (s *Store) Restore(ctx context.Context) error {
	p, err := s.storage.Load(ctx)
	if err != nil {
		s.setLoading(false)
		return err
	}
	if p.Empty() {
		s.setLoading(false)
		return nil
	}
	identity, err := s.decoder.Decode(p.Credential)
	if err != nil {
		s.logger.Info("session restore discarded credential", slog.Any("error", err))
		s.expire(ctx)
		return nil
	}
	s.install(ctx, p.Credential, identity)
	return nil
}

// Login authenticates with the backend and installs the returned credential.
func (s *Store) Login(ctx context.Context, req LoginRequest) (Result, error) {
	s.begin()
	grant, err := s.auth.Login(ctx, req)
	if err != nil {
		return Result{}, s.fail(opLogin, err)
	}
	return s.accept(ctx, grant, true)
}

// Register creates an account. When the backend answers with a credential the
// new user is signed in; otherwise the session is left untouched.
func (s *Store) Register(ctx context.Context, req RegisterRequest) (Result, error) {
	s.begin()
	grant, err := s.auth.Register(ctx, req)
	if err != nil {
		return Result{}, s.fail(opRegister, err)
	}
	return s.accept(ctx, grant, false)
}

func (s *Store) accept(ctx context.Context, grant Grant, requireToken bool) (Result, error) {
	if strings.TrimSpace(grant.AccessToken) == "" {
		if !requireToken {
			s.setLoading(false)
			return Result{Payload: grant.Payload}, nil
		}
		return Result{}, s.fail(opLogin, &AuthError{Kind: KindNoToken, Message: "No access token received"})
	}
	identity, err := s.decoder.Decode(grant.AccessToken)
	if err != nil {
		s.expire(ctx)
		return Result{}, expired(err)
	}
	s.install(ctx, grant.AccessToken, identity)
	return Result{Identity: identity, Payload: grant.Payload}, nil
}

// Logout clears the session. It is safe to call repeatedly.
func (s *Store) Logout(ctx context.Context) {
	s.clear(ctx, "")
}

// Refresh renews the credential. Concurrent callers share one renewal call and
// receive the same outcome. Failure forces a logout.
func (s *Store) Refresh(ctx context.Context) (string, error) {
	ch := s.refresh.DoChan("refresh", func() (any, error) {
		return s.renew(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *Store) renew(ctx context.Context) (string, error) {
	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()

	token, err := s.exchange(ctx, gen)
	if s.onRefresh != nil {
		s.onRefresh(err)
	}
	if err != nil {
		s.logger.Warn("credential refresh failed", slog.Any("error", err))
	}
	return token, err
}

func (s *Store) exchange(ctx context.Context, gen uint64) (string, error) {
	grant, err := s.auth.Refresh(ctx)
	if err == nil && strings.TrimSpace(grant.AccessToken) == "" {
		err = &AuthError{Kind: KindNoToken, Message: "No access token received"}
	}
	if err != nil {
		s.expireIfCurrent(ctx, gen)
		return "", refreshFailure(err)
	}
	identity, err := s.decoder.Decode(grant.AccessToken)
	if err != nil {
		s.expireIfCurrent(ctx, gen)
		return "", refreshFailure(err)
	}
	if !s.installIfCurrent(ctx, gen, grant.AccessToken, identity) {
		return "", refreshFailure(ErrSessionClosed)
	}
	return grant.AccessToken, nil
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{Credential: s.credential, Loading: s.loading, Err: s.errMsg}
	if s.identity != nil {
		identity := *s.identity
		snap.Identity = &identity
	}
	return snap
}

// Credential returns the current bearer credential or "".
func (s *Store) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// Identity returns the decoded identity when signed in.
func (s *Store) Identity() (credential.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return credential.Identity{}, false
	}
	return *s.identity, true
}

// Principal adapts the store to the access guard.
func (s *Store) Principal() (rbac.Principal, bool) {
	identity, ok := s.Identity()
	if !ok {
		return nil, false
	}
	return identity, true
}

// Current returns the principal for an access decision. A credential past
// its expiry is renewed first; when renewal fails the session is cleared and
// no principal is returned.
func (s *Store) Current(ctx context.Context) (rbac.Principal, bool) {
	identity, ok := s.Identity()
	if !ok {
		return nil, false
	}
	if !s.decoder.Expired(identity) {
		return identity, true
	}
	if s.auth == nil {
		s.expire(ctx)
		return nil, false
	}
	if _, err := s.Refresh(ctx); err != nil {
		return nil, false
	}
	return s.Principal()
}

// Role returns the current role or "".
func (s *Store) Role() rbac.Role {
	identity, _ := s.Identity()
	return identity.Role
}

// Subscribe registers fn for every state change. The returned func cancels it.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

// HasRole reports whether the signed-in user holds role.
func (s *Store) HasRole(role rbac.Role) bool {
	current := s.Role()
	return current != "" && current == role
}

// HasAnyRole reports whether the signed-in user holds one of roles.
func (s *Store) HasAnyRole(roles ...rbac.Role) bool {
	current := s.Role()
	return current != "" && rbac.HasAnyRole(current, roles...)
}

// HasUserPermission evaluates the permission table for the signed-in user.
func (s *Store) HasUserPermission(resource rbac.Resource, action rbac.Action) bool {
	return rbac.HasPermission(s.Role(), resource, action)
}

// CanUserAccess reports whether the signed-in user holds any grant on feature.
func (s *Store) CanUserAccess(feature rbac.Resource) bool {
	return rbac.CanAccess(s.Role(), feature)
}

// FullName returns the display name of the signed-in user or "".
func (s *Store) FullName() string {
	identity, ok := s.Identity()
	if !ok {
		return ""
	}
	return credential.DisplayName(identity.FirstName, identity.LastName, identity.Username)
}

// DashboardConfig returns the dashboard flags for the signed-in user.
func (s *Store) DashboardConfig() rbac.DashboardConfig {
	return rbac.Profile(s.Role()).Dashboard
}

// Routes returns the UI routes for the signed-in user.
func (s *Store) Routes() map[rbac.Resource]string {
	return rbac.Profile(s.Role()).Routes
}

// Navigation returns the sidebar for the signed-in user.
func (s *Store) Navigation() []rbac.NavItem {
	return rbac.Navigation(s.Role())
}

// ClearError drops the last user-facing error.
func (s *Store) ClearError() {
	s.mu.Lock()
	changed := s.errMsg != ""
	s.errMsg = ""
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()
}

func (s *Store) setLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
	s.notify()
}

func (s *Store) fail(op operation, err error) error {
	authErr := classify(op, err)
	s.mu.Lock()
	s.loading = false
	s.errMsg = authErr.Message
	s.mu.Unlock()
	s.logger.Warn("authentication failed", slog.String("op", string(op)), slog.String("kind", string(authErr.Kind)), slog.Any("error", authErr.Err))
	s.notify()
	return authErr
}

func (s *Store) install(ctx context.Context, token string, identity credential.Identity) {
	s.mu.Lock()
	gen := s.swapLocked(token, identity)
	s.mu.Unlock()
	s.persist(ctx, gen, &Persisted{Credential: token, Role: identity.Role})
	s.notify()
}

func (s *Store) installIfCurrent(ctx context.Context, expected uint64, token string, identity credential.Identity) bool {
	s.mu.Lock()
	if s.generation != expected {
		s.mu.Unlock()
		return false
	}
	gen := s.swapLocked(token, identity)
	s.mu.Unlock()
	s.persist(ctx, gen, &Persisted{Credential: token, Role: identity.Role})
	s.notify()
	return true
}

func (s *Store) swapLocked(token string, identity credential.Identity) uint64 {
	s.credential = token
	s.identity = &identity
	s.loading = false
	s.errMsg = ""
	s.generation++
	return s.generation
}

func (s *Store) expire(ctx context.Context) {
	s.clear(ctx, MessageSessionExpired)
}

// expireIfCurrent signs out only when nothing replaced the session since
// generation expected was read. The check and the reset share one lock so a
// login landing in between is never undone.
func (s *Store) expireIfCurrent(ctx context.Context, expected uint64) {
	s.mu.Lock()
	if s.generation != expected {
		s.mu.Unlock()
		return
	}
	previous, gen := s.resetLocked(MessageSessionExpired)
	s.mu.Unlock()
	s.finishClear(ctx, previous, gen)
}

func (s *Store) clear(ctx context.Context, reason string) {
	s.mu.Lock()
	previous, gen := s.resetLocked(reason)
	s.mu.Unlock()
	s.finishClear(ctx, previous, gen)
}

func (s *Store) resetLocked(reason string) (previous string, gen uint64) {
	previous = s.credential
	s.credential = ""
	s.identity = nil
	s.loading = false
	s.errMsg = reason
	s.generation++
	return previous, s.generation
}

func (s *Store) finishClear(ctx context.Context, previous string, gen uint64) {
	s.persist(ctx, gen, nil)
	if previous != "" && s.auth != nil {
		if err := s.auth.Logout(ctx, previous); err != nil {
			s.logger.Debug("backend logout failed", slog.Any("error", err))
		}
	}
	if s.auth != nil {
		s.auth.ExpireRenewalSecret()
	}
	s.notify()
}

// persist writes p (or clears storage when p is nil) unless a newer state
// change has already superseded generation gen.
func (s *Store) persist(ctx context.Context, gen uint64, p *Persisted) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	stale := s.generation != gen
	s.mu.RUnlock()
	if stale {
		return
	}

	ctx = context.WithoutCancel(ctx)
	var err error
	if p == nil {
		err = s.storage.Clear(ctx)
	} else {
		err = s.storage.Save(ctx, *p)
	}
	if err != nil {
		s.logger.Error("session storage write failed", slog.Any("error", err))
	}
}

func (s *Store) notify() {
	snap := s.Snapshot()
	s.subsMu.Lock()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subsMu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}
