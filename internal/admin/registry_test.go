package admin

import (
	"context"
	"testing"
	"time"

	"github.com/fekuna/evaluation-portal/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryExpiresWorkspaces(t *testing.T) {
	s := newTestServer(t)
	reg := s.registry

	now := time.Now()
	reg.now = func() time.Time { return now }
	ws := reg.Open(context.Background(), "ar")

	got, ok := reg.Get(ws.Token)
	require.True(t, ok)
	assert.Same(t, ws, got)

	now = now.Add(2 * time.Hour)
	_, ok = reg.Get(ws.Token)
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistrySweep(t *testing.T) {
	s := newTestServer(t)
	reg := s.registry

	now := time.Now()
	reg.now = func() time.Time { return now }
	reg.Open(context.Background(), "ar")
	now = now.Add(30 * time.Minute)
	fresh := reg.Open(context.Background(), "en")

	now = now.Add(45 * time.Minute)
	assert.Equal(t, 1, reg.Sweep())
	_, ok := reg.Get(fresh.Token)
	assert.True(t, ok)
}

func TestRegistryRunClosesOnShutdown(t *testing.T) {
	s := newTestServer(t)
	s.registry.Open(context.Background(), "ar")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.registry.Run(ctx, time.Hour) }()
	cancel()

	require.NoError(t, <-done)
	assert.Equal(t, 0, s.registry.Len())
}

func TestRegistryExpiresWithSessionToken(t *testing.T) {
	s := newTestServer(t)
	reg := s.registry

	now := time.Now()
	reg.now = func() time.Time { return now }
	tokenExpiry := now.Add(10 * time.Minute)
	reg.cfg.NewProvider = func() auth.Provider { return &stubProvider{expiresAt: tokenExpiry} }

	ctx := context.Background()
	ws := reg.Open(ctx, "ar")
	require.NoError(t, ws.Gate.SignIn(ctx, "admin@example.com", "correct"))
	settleCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	state, err := ws.Gate.Settled(settleCtx)
	require.NoError(t, err)
	require.True(t, state.IsAdmin)

	_, ok := reg.Get(ws.Token)
	require.True(t, ok)

	// Well inside the workspace TTL, but past the token.
	now = tokenExpiry.Add(time.Second)
	_, ok = reg.Get(ws.Token)
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())
}
