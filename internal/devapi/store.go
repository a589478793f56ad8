package devapi

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/propertyhub/propertyhub/internal/rbac"
)

var (
	errNotFound   = errors.New("devapi: not found")
	errDuplicate  = errors.New("devapi: username or email already exists")
	errBadLogin   = errors.New("devapi: invalid credentials")
	errBadRenewal = errors.New("devapi: invalid refresh token")
)

// User is an account known to the development backend.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Role         rbac.Role `json:"role"`
	PasswordHash string    `json:"-"`
}

// Record is a generic resource row.
type Record map[string]any

type renewal struct {
	userID    int64
	expiresAt time.Time
}

// memory holds every piece of backend state behind one lock.
type memory struct {
	mu       sync.RWMutex
	users    map[int64]*User
	nextUser int64
	records  map[rbac.Resource]map[int64]Record
	nextID   map[rbac.Resource]int64
	renewals map[string]renewal
	cost     int
}

func newMemory(cost int) *memory {
	return &memory{
		users:    make(map[int64]*User),
		records:  make(map[rbac.Resource]map[int64]Record),
		nextID:   make(map[rbac.Resource]int64),
		renewals: make(map[string]renewal),
		cost:     cost,
	}
}

func (m *memory) addUser(u User, password string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Username, u.Username) || strings.EqualFold(existing.Email, u.Email) {
			return User{}, errDuplicate
		}
	}
	m.nextUser++
	u.ID = m.nextUser
	u.PasswordHash = string(hash)
	m.users[u.ID] = &u
	return u, nil
}

func (m *memory) authenticate(login, password string) (User, error) {
	m.mu.RLock()
	var found *User
	for _, u := range m.users {
		if strings.EqualFold(u.Username, login) || strings.EqualFold(u.Email, login) {
			found = u
			break
		}
	}
	m.mu.RUnlock()
	if found == nil {
		return User{}, errBadLogin
	}
	if bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(password)) != nil {
		return User{}, errBadLogin
	}
	return *found, nil
}

func (m *memory) user(id int64) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, errNotFound
	}
	return *u, nil
}

func (m *memory) listUsers() []User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memory) deleteUser(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return errNotFound
	}
	delete(m.users, id)
	for token, r := range m.renewals {
		if r.userID == id {
			delete(m.renewals, token)
		}
	}
	return nil
}

func (m *memory) issueRenewal(userID int64, ttl time.Duration, now time.Time) string {
	token := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renewals[token] = renewal{userID: userID, expiresAt: now.Add(ttl)}
	return token
}

func (m *memory) redeemRenewal(token string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.renewals[token]
	if !ok {
		return 0, errBadRenewal
	}
	if !r.expiresAt.After(now) {
		delete(m.renewals, token)
		return 0, errBadRenewal
	}
	return r.userID, nil
}

func (m *memory) revokeRenewal(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.renewals, token)
}

func (m *memory) list(resource rbac.Resource) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.records[resource]
	out := make([]Record, 0, len(rows))
	for _, rec := range rows {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i]["id"].(int64) < out[j]["id"].(int64) })
	return out
}

func (m *memory) get(resource rbac.Resource, id int64) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[resource][id]
	if !ok {
		return nil, errNotFound
	}
	return rec, nil
}

func (m *memory) put(resource rbac.Resource, id int64, fields Record) Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == 0 {
		m.nextID[resource]++
		id = m.nextID[resource]
	}
	rec := make(Record, len(fields)+1)
	for k, v := range fields {
		rec[k] = v
	}
	rec["id"] = id
	if m.records[resource] == nil {
		m.records[resource] = make(map[int64]Record)
	}
	m.records[resource][id] = rec
	return rec
}

func (m *memory) exists(resource rbac.Resource, id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[resource][id]
	return ok
}

func (m *memory) remove(resource rbac.Resource, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[resource][id]; !ok {
		return errNotFound
	}
	delete(m.records[resource], id)
	return nil
}

func (m *memory) counts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := map[string]int{"users": len(m.users)}
	for resource, rows := range m.records {
		out[string(resource)] = len(rows)
	}
	return out
}

func (m *memory) updateUser(id int64, patch userPatch) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, errNotFound
	}
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		u.LastName = *patch.LastName
	}
	if patch.Phone != nil {
		u.Phone = *patch.Phone
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	return *u, nil
}
