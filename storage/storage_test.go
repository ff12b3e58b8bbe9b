package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseKV runs the behaviour every backend must share.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "a", "1"))
	require.NoError(t, kv.Set(ctx, "b", "2"))
	v, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	require.NoError(t, kv.Set(ctx, "a", "updated"))
	v, err = kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "updated", v)

	require.NoError(t, kv.Delete(ctx, "a", "b", "never-written"))
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = kv.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Delete(ctx))
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	exerciseKV(t, m)
	assert.Equal(t, 0, m.Len())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	exerciseKV(t, NewFile(path))
}

func TestFile_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	require.NoError(t, NewFile(path).Set(ctx, "token", "abc"))

	reopened := NewFile(path)
	v, err := reopened.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFile_CorruptContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFile(path).Get(context.Background(), "token")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestFile_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, err := NewFile(path).Get(context.Background(), "token")
	assert.ErrorIs(t, err, ErrNotFound)
}

func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewRedis(client, "afisha:"), mr
}

func TestRedis(t *testing.T) {
	kv, _ := setupRedis(t)
	exerciseKV(t, kv)
}

func TestRedis_Prefix(t *testing.T) {
	kv, mr := setupRedis(t)
	require.NoError(t, kv.Set(context.Background(), "sessionToken", "tok"))

	got, err := mr.Get("afisha:sessionToken")
	require.NoError(t, err)
	assert.Equal(t, "tok", got)
}

func TestRedis_ServerDown(t *testing.T) {
	kv, mr := setupRedis(t)
	mr.Close()

	_, err := kv.Get(context.Background(), "sessionToken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNewRedisFromURL(t *testing.T) {
	mr := miniredis.RunT(t)

	kv, client, err := NewRedisFromURL(context.Background(), "redis://"+mr.Addr(), "p:")
	require.NoError(t, err)
	defer client.Close()
	exerciseKV(t, kv)

	_, _, err = NewRedisFromURL(context.Background(), "invalid://url", "")
	assert.Error(t, err)
}
