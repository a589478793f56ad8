package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/propertyhub/propertyhub/internal/rbac"
)

// Persisted is the durable form of a session.
type Persisted struct {
	Credential string    `json:"token"`
	Role       rbac.Role `json:"role,omitempty"`
}

// Empty reports whether no credential is stored.
func (p Persisted) Empty() bool {
	return p.Credential == ""
}

// Storage persists the credential and role across process restarts.
// Load returns the zero Persisted when nothing is stored.
type Storage interface {
	Load(ctx context.Context) (Persisted, error)
	Save(ctx context.Context, p Persisted) error
	Clear(ctx context.Context) error
}

// RedisStorage keeps a session under two fixed keys: <namespace>:token and
// <namespace>:role.
type RedisStorage struct {
	client    redis.Cmdable
	namespace string
	ttl       time.Duration
}

// NewRedisStorage builds storage scoped to namespace. A zero ttl keeps keys
// until cleared.
func NewRedisStorage(client redis.Cmdable, namespace string, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, namespace: namespace, ttl: ttl}
}

// Namespace derives the storage namespace for a browser session.
func Namespace(prefix, sessionID string) string {
	return prefix + ":" + sessionID
}

func (s *RedisStorage) tokenKey() string { return s.namespace + ":token" }
func (s *RedisStorage) roleKey() string  { return s.namespace + ":role" }

// Load implements Storage.
func (s *RedisStorage) Load(ctx context.Context) (Persisted, error) {
	values, err := s.client.MGet(ctx, s.tokenKey(), s.roleKey()).Result()
	if err != nil {
		return Persisted{}, fmt.Errorf("session: load %s: %w", s.namespace, err)
	}
	var p Persisted
	if token, ok := values[0].(string); ok {
		p.Credential = token
	}
	if role, ok := values[1].(string); ok {
		p.Role = rbac.Role(role)
	}
	return p, nil
}

// Save implements Storage.
func (s *RedisStorage) Save(ctx context.Context, p Persisted) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(), p.Credential, s.ttl)
		if p.Role == "" {
			pipe.Del(ctx, s.roleKey())
		} else {
			pipe.Set(ctx, s.roleKey(), string(p.Role), s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: save %s: %w", s.namespace, err)
	}
	return nil
}

// Clear implements Storage.
func (s *RedisStorage) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.tokenKey(), s.roleKey()).Err(); err != nil {
		return fmt.Errorf("session: clear %s: %w", s.namespace, err)
	}
	return nil
}

// FileStorage keeps a session in a JSON file readable only by the owner.
type FileStorage struct {
	path string
}

// NewFileStorage creates the parent directory of path if needed.
func NewFileStorage(path string) (*FileStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("session: create %s: %w", filepath.Dir(path), err)
	}
	return &FileStorage{path: path}, nil
}

// DefaultFilePath returns ~/.propertyhub/session.json.
func DefaultFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("session: home directory: %w", err)
	}
	return filepath.Join(home, ".propertyhub", "session.json"), nil
}

// Load implements Storage.
func (s *FileStorage) Load(context.Context) (Persisted, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Persisted{}, nil
	}
	if err != nil {
		return Persisted{}, fmt.Errorf("session: read %s: %w", s.path, err)
	}
	var p Persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return Persisted{}, fmt.Errorf("session: parse %s: %w", s.path, err)
	}
	return p, nil
}

// Save implements Storage.
func (s *FileStorage) Save(_ context.Context, p Persisted) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Clear implements Storage.
func (s *FileStorage) Clear(context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: remove %s: %w", s.path, err)
	}
	return nil
}

// MemoryStorage keeps the session in process memory.
type MemoryStorage struct {
	mu sync.Mutex
	p  Persisted
}

// Load implements Storage.
func (s *MemoryStorage) Load(context.Context) (Persisted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p, nil
}

// Save implements Storage.
func (s *MemoryStorage) Save(_ context.Context, p Persisted) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = p
	return nil
}

// Clear implements Storage.
func (s *MemoryStorage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = Persisted{}
	return nil
}
