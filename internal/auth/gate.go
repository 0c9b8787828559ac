package auth

import (
	"context"
	"sync"
	"time"

	"github.com/fekuna/evaluation-portal/internal/logger"
	"go.uber.org/zap"
)

type State struct {
	User    *User `json:"user"`
	IsAdmin bool  `json:"is_admin"`
	Loading bool  `json:"loading"`
}

type Decision int

const (
	GuardPending Decision = iota
	GuardAllow
	GuardRedirect
)

func (d Decision) String() string {
	switch d {
	case GuardAllow:
		return "allow"
	case GuardRedirect:
		return "redirect"
	default:
		return "pending"
	}
}

const adminCheckTimeout = 5 * time.Second

// Gate tracks who is signed in and whether they are an admin. Every
// session change bumps a sequence number; an admin check started for an
// older sequence is discarded when it resolves.
type Gate struct {
	provider Provider
	allow    AllowList
	logger   logger.ZapLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	expiresAt time.Time
	seq       uint64
	inflight  int
	changed   chan struct{}
	sub       Subscription
	closed    bool
}

func NewGate(provider Provider, allow AllowList, log logger.ZapLogger) *Gate {
	ctx, cancel := context.WithCancel(context.Background())
	return &Gate{
		provider: provider,
		allow:    allow,
		logger:   log,
		ctx:      ctx,
		cancel:   cancel,
		state:    State{Loading: true},
		changed:  make(chan struct{}),
	}
}

// Start subscribes to session changes before resolving the current session,
// so a change that lands while GetSession is in flight is not lost.
func (g *Gate) Start(ctx context.Context) {
	sub := g.provider.OnAuthStateChange(func(event Event, session *Session) {
		g.resolve(event, session, false, 0)
	})

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	g.sub = sub
	startSeq := g.seq
	g.mu.Unlock()

	session, err := g.provider.GetSession(ctx)
	if err != nil {
		g.logger.Warn("Failed to read initial session", zap.Error(err))
		session = nil
	}
	g.resolve(EventInitialSession, session, true, startSeq)
}

// resolve applies a session. When onlyIfSeq is set the session is dropped if
// any other change arrived after expectSeq was read.
func (g *Gate) resolve(event Event, session *Session, onlyIfSeq bool, expectSeq uint64) {
	g.mu.Lock()
	if g.closed || (onlyIfSeq && g.seq != expectSeq) {
		g.mu.Unlock()
		return
	}
	g.seq++
	seq := g.seq

	if session == nil {
		g.state = State{}
		g.expiresAt = time.Time{}
		g.notifyLocked()
		g.mu.Unlock()
		g.logger.Debug("Session cleared", zap.String("event", string(event)))
		return
	}

	user := session.User
	if g.state.User == nil || g.state.User.ID != user.ID {
		g.state.IsAdmin = false
	}
	g.state.User = &user
	g.expiresAt = session.ExpiresAt
	g.inflight++
	g.notifyLocked()
	g.mu.Unlock()

	go g.checkAdmin(seq, user)
}

func (g *Gate) checkAdmin(seq uint64, user User) {
	ctx, cancel := context.WithTimeout(g.ctx, adminCheckTimeout)
	defer cancel()

	isAdmin, err := g.allow.IsAdmin(ctx, user.ID)
	if err != nil {
		g.logger.Warn("Admin check failed", zap.String("user_id", user.ID), zap.Error(err))
		isAdmin = false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.inflight--
	if !g.closed && seq == g.seq {
		g.state = State{User: &user, IsAdmin: isAdmin}
	}
	g.notifyLocked()
}

func (g *Gate) notifyLocked() {
	close(g.changed)
	g.changed = make(chan struct{})
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *Gate) snapshotLocked() State {
	s := g.state
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	if g.inflight > 0 {
		s.Loading = true
	}
	return s
}

// ExpiresAt is when the current session's token lapses; zero when nobody
// is signed in or the provider gave no expiry.
func (g *Gate) ExpiresAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.expiresAt
}

// revalidate clears a signed-in state whose provider session is gone, for
// instance because its token expired without a change event reaching us.
func (g *Gate) revalidate() {
	g.mu.Lock()
	if g.closed || g.state.User == nil || g.inflight > 0 {
		g.mu.Unlock()
		return
	}
	seq := g.seq
	g.mu.Unlock()

	session, err := g.provider.GetSession(g.ctx)
	if err != nil {
		g.logger.Warn("Failed to re-read session", zap.Error(err))
		return
	}
	if session == nil {
		g.resolve(EventSignedOut, nil, true, seq)
	}
}

// Settled blocks until no session resolution or admin check is pending.
func (g *Gate) Settled(ctx context.Context) (State, error) {
	g.revalidate()
	for {
		g.mu.Lock()
		if g.closed || (!g.state.Loading && g.inflight == 0) {
			s := g.snapshotLocked()
			g.mu.Unlock()
			return s, nil
		}
		ch := g.changed
		g.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return g.State(), ctx.Err()
		}
	}
}

// Guard decides access to admin pages. It never redirects while anything
// is still loading.
func (g *Gate) Guard() Decision {
	g.revalidate()
	s := g.State()
	switch {
	case s.Loading:
		return GuardPending
	case s.User == nil || !s.IsAdmin:
		return GuardRedirect
	default:
		return GuardAllow
	}
}

// SignIn forwards to the provider; the resulting session arrives through
// the change subscription.
func (g *Gate) SignIn(ctx context.Context, email, password string) error {
	return g.provider.SignInWithPassword(ctx, email, password)
}

// SignOut always clears local state, even if remote revocation fails.
func (g *Gate) SignOut(ctx context.Context) error {
	err := g.provider.SignOut(ctx)
	g.resolve(EventSignedOut, nil, false, 0)
	return err
}

func (g *Gate) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	sub := g.sub
	g.sub = nil
	g.notifyLocked()
	g.mu.Unlock()

	g.cancel()
	if sub != nil {
		sub.Unsubscribe()
	}
}
