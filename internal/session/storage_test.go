package session_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/propertyhub/propertyhub/internal/rbac"
	"github.com/propertyhub/propertyhub/internal/session"
)

func TestRedisStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage, mr := newRedisStorage(t)

	p, err := storage.Load(ctx)
	require.NoError(t, err)
	require.True(t, p.Empty())

	require.NoError(t, storage.Save(ctx, session.Persisted{Credential: "t", Role: rbac.RoleTenant}))
	p, err = storage.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, session.Persisted{Credential: "t", Role: rbac.RoleTenant}, p)
	require.Positive(t, mr.TTL("propertyhub:abc:token"))

	require.NoError(t, storage.Clear(ctx))
	require.False(t, mr.Exists("propertyhub:abc:token"))
}

func TestFileStorage(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	storage, err := session.NewFileStorage(path)
	require.NoError(t, err)

	p, err := storage.Load(ctx)
	require.NoError(t, err)
	require.True(t, p.Empty())

	require.NoError(t, storage.Save(ctx, session.Persisted{Credential: "t", Role: rbac.RoleAdmin}))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	p, err = storage.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, rbac.RoleAdmin, p.Role)

	require.NoError(t, storage.Clear(ctx))
	require.NoError(t, storage.Clear(ctx))
	_, err = os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)
}
