package auth

import (
	"context"
	"time"
)

// Event names follow the hosted auth provider's change events.
type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Session struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// StateChangeHandler receives a nil session when nobody is signed in.
type StateChangeHandler func(event Event, session *Session)

type Subscription interface {
	Unsubscribe()
}

// Provider is the external authentication service.
type Provider interface {
	// SignInWithPassword returns an AuthenticationError for rejected
	// credentials. The new session is announced through the change handlers.
	SignInWithPassword(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	OnAuthStateChange(handler StateChangeHandler) Subscription
	GetSession(ctx context.Context) (*Session, error)
}

// AllowList answers whether a user may enter the back office.
type AllowList interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}
