package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammorganparry/stockview/internal/config"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	v, err := s.Get(ctx, "token")
	require.NoError(t, err)
	assert.Empty(t, v, "missing key reads as empty")

	require.NoError(t, s.Put(ctx, map[string]string{"token": "abc123", "username": "alice"}))
	v, err = s.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc123", v)

	require.NoError(t, s.Put(ctx, map[string]string{"token": "def456"}))
	v, err = s.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "def456", v, "put replaces")

	require.NoError(t, s.Delete(ctx, "token", "username", "never-set"))
	v, err = s.Get(ctx, "username")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	exerciseStore(t, m)
	assert.False(t, m.Has("token"))
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, map[string]string{"token": "abc123", "username": "alice"}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get(ctx, "username")
	require.NoError(t, err)
	assert.Equal(t, "alice", v)

	n, err := s.count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	f, err := OpenFile(path)
	require.NoError(t, err)
	exerciseStore(t, f)
}

func TestFileSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.yaml")

	f, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Put(ctx, map[string]string{"token": "abc123"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	f, err = OpenFile(path)
	require.NoError(t, err)
	v, err := f.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc123", v)
}

func TestFileRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte("token: [unterminated"), 0o600))

	_, err := OpenFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse session file")
}

func TestRedis(t *testing.T) {
	url := os.Getenv("STOCKVIEW_TEST_REDIS_URL")
	if url == "" {
		t.Skip("STOCKVIEW_TEST_REDIS_URL not set")
	}
	r, err := OpenRedis(context.Background(), url)
	require.NoError(t, err)
	defer r.Close()
	exerciseStore(t, r)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.SessionConfig{Backend: config.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, config.SessionConfig{Backend: config.BackendFile, Path: filepath.Join(t.TempDir(), "s.yaml")})
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)

	_, err = Open(ctx, config.SessionConfig{Backend: "etcd"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
