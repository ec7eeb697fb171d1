package session_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naab-lang/naab/core/capability"
	"github.com/naab-lang/naab/core/session"
)

func TestLocalSessionRunDeniedWithoutCapability(t *testing.T) {
	guard := capability.NewGuard()
	s := session.NewLocalSession(guard)
	_, err := s.Run(context.Background(), []string{"/bin/echo", "hi"}, session.RunOpts{})
	require.Error(t, err)
}

func TestLocalSessionRunSucceeds(t *testing.T) {
	guard := capability.NewGuard(capability.SpawnProcess)
	s := session.NewLocalSession(guard)
	res, err := s.Run(context.Background(), []string{"/bin/echo", "hello"}, session.RunOpts{})
	require.NoError(t, err)
	assert.Equal(t, session.ExitSuccess, res.ExitCode)
	assert.Contains(t, string(res.Stdout), "hello")
}

func TestLocalSessionPutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	guard := capability.NewGuard(capability.FSWrite, capability.FSRead)
	s := session.NewLocalSession(guard).WithWorkdir(dir)

	path := filepath.Join(dir, "out.txt")
	require.NoError(t, s.Put(context.Background(), []byte("data"), path, 0o644))

	got, err := s.Get(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}

func TestLocalSessionPutDeniedWithoutCapability(t *testing.T) {
	dir := t.TempDir()
	guard := capability.NewGuard()
	s := session.NewLocalSession(guard).WithWorkdir(dir)
	err := s.Put(context.Background(), []byte("x"), filepath.Join(dir, "f.txt"), 0o644)
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "f.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestLocalSessionWithEnvCopyOnWrite(t *testing.T) {
	guard := capability.NewGuard()
	base := session.NewLocalSession(guard)
	derived := base.WithEnv(map[string]string{"FOO": "bar"})

	assert.Equal(t, "bar", derived.Env()["FOO"])
	_, inBase := base.Env()["FOO"]
	assert.False(t, inBase)
}
