package admin

import (
	"context"
	"sync"
	"time"

	"github.com/fekuna/evaluation-portal/internal/auth"
	"github.com/fekuna/evaluation-portal/internal/dashboard"
	"github.com/fekuna/evaluation-portal/internal/i18n"
	"github.com/fekuna/evaluation-portal/internal/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Workspace is one admin sign-in: its own auth session, gate and dashboard.
type Workspace struct {
	Token     string
	Gate      *auth.Gate
	Dashboard *dashboard.Controller
	CreatedAt time.Time
}

func (w *Workspace) close() {
	w.Dashboard.Close()
	w.Gate.Close()
}

// ProviderFactory builds a fresh provider for every workspace.
type ProviderFactory func() auth.Provider

type RegistryConfig struct {
	TTL         time.Duration
	NewProvider ProviderFactory
	AllowList   auth.AllowList
	Services    dashboard.Services
	Bundle      *i18n.Bundle
}

// Registry keeps workspaces in memory, keyed by a random token. Entries
// expire TTL after creation or when their session token lapses, whichever
// comes first.
type Registry struct {
	cfg    RegistryConfig
	logger logger.ZapLogger
	now    func() time.Time

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

func NewRegistry(cfg RegistryConfig, log logger.ZapLogger) *Registry {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Registry{
		cfg:        cfg,
		logger:     log,
		now:        time.Now,
		workspaces: make(map[string]*Workspace),
	}
}

// Open creates a workspace and starts its gate. lang selects the locale of
// dashboard notifications.
func (r *Registry) Open(ctx context.Context, lang string) *Workspace {
	token := uuid.NewString()
	log := r.logger.With(zap.String("workspace", token[:8]))

	gate := auth.NewGate(r.cfg.NewProvider(), r.cfg.AllowList, log)
	gate.Start(ctx)

	ws := &Workspace{
		Token:     token,
		Gate:      gate,
		Dashboard: dashboard.NewController(r.cfg.Services, r.cfg.Bundle.Localizer(lang), log),
		CreatedAt: r.now(),
	}

	r.mu.Lock()
	r.workspaces[token] = ws
	r.mu.Unlock()
	return ws
}

func (r *Registry) Get(token string) (*Workspace, bool) {
	if token == "" {
		return nil, false
	}
	r.mu.Lock()
	ws, ok := r.workspaces[token]
	if ok && r.expired(ws) {
		delete(r.workspaces, token)
		r.mu.Unlock()
		ws.close()
		return nil, false
	}
	r.mu.Unlock()
	return ws, ok
}

// Delete closes the workspace's subscription and dashboard.
func (r *Registry) Delete(token string) {
	r.mu.Lock()
	ws, ok := r.workspaces[token]
	delete(r.workspaces, token)
	r.mu.Unlock()
	if ok {
		ws.close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// expired reports whether the workspace outlived its TTL or the token of
// its signed-in session.
func (r *Registry) expired(ws *Workspace) bool {
	now := r.now()
	if now.Sub(ws.CreatedAt) > r.cfg.TTL {
		return true
	}
	exp := ws.Gate.ExpiresAt()
	return !exp.IsZero() && !now.Before(exp)
}

// Sweep drops expired workspaces and returns how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	var stale []*Workspace
	for token, ws := range r.workspaces {
		if r.expired(ws) {
			stale = append(stale, ws)
			delete(r.workspaces, token)
		}
	}
	r.mu.Unlock()

	for _, ws := range stale {
		ws.close()
	}
	return len(stale)
}

// Run sweeps on every tick until ctx is done, then closes all workspaces.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Close()
			return nil
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Info("Expired admin workspaces removed", zap.Int("count", n))
			}
		}
	}
}

func (r *Registry) Close() {
	r.mu.Lock()
	all := r.workspaces
	r.workspaces = make(map[string]*Workspace)
	r.mu.Unlock()

	for _, ws := range all {
		ws.close()
	}
}
