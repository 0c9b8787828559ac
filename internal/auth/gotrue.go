package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fekuna/evaluation-portal/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

type GoTrueConfig struct {
	// URL is the GoTrue base, e.g. https://<project>.supabase.co/auth/v1.
	URL       string
	AnonKey   string
	JWTSecret string
	Client    *http.Client
}

// GoTrueProvider holds the session of exactly one sign-in. Each admin
// workspace owns its own provider.
type GoTrueProvider struct {
	cfg    GoTrueConfig
	client *http.Client
	now    func() time.Time

	mu       sync.Mutex
	session  *Session
	expiry   *time.Timer
	handlers map[uint64]StateChangeHandler
	nextID   uint64
}

func NewGoTrueProvider(cfg GoTrueConfig) *GoTrueProvider {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoTrueProvider{
		cfg:      cfg,
		client:   client,
		now:      time.Now,
		handlers: make(map[uint64]StateChangeHandler),
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
}

func (e errorResponse) message() string {
	switch {
	case e.ErrorDescription != "":
		return e.ErrorDescription
	case e.Msg != "":
		return e.Msg
	default:
		return e.Error
	}
}

type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (p *GoTrueProvider) SignInWithPassword(ctx context.Context, email, password string) error {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return errors.Wrap(err, "encode credentials")
	}

	resp, err := p.do(ctx, http.MethodPost, "/token?grant_type=password", "", body)
	if err != nil {
		return apperr.DataAccess("sign in", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var er errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&er)
		switch resp.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusUnprocessableEntity:
			return apperr.Authentication(errors.New(er.message()))
		default:
			return apperr.DataAccess("sign in", fmt.Errorf("gotrue returned %d: %s", resp.StatusCode, er.message()))
		}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return apperr.DataAccess("sign in", errors.Wrap(err, "decode token response"))
	}

	session, err := p.sessionFrom(&tr)
	if err != nil {
		return apperr.Authentication(err)
	}

	p.mu.Lock()
	p.session = session
	p.armExpiryLocked(session)
	p.mu.Unlock()

	p.emit(EventSignedIn, session)
	return nil
}

// armExpiryLocked announces SIGNED_OUT when the access token lapses.
func (p *GoTrueProvider) armExpiryLocked(s *Session) {
	p.stopExpiryLocked()
	if s.ExpiresAt.IsZero() {
		return
	}
	delay := s.ExpiresAt.Sub(p.now())
	if delay < 0 {
		delay = 0
	}
	p.expiry = time.AfterFunc(delay, func() { p.expire(s) })
}

func (p *GoTrueProvider) stopExpiryLocked() {
	if p.expiry != nil {
		p.expiry.Stop()
		p.expiry = nil
	}
}

// expire drops s if it is still the current session.
func (p *GoTrueProvider) expire(s *Session) {
	p.mu.Lock()
	if p.session != s {
		p.mu.Unlock()
		return
	}
	p.session = nil
	p.expiry = nil
	p.mu.Unlock()

	p.emit(EventSignedOut, nil)
}

func (p *GoTrueProvider) sessionFrom(tr *tokenResponse) (*Session, error) {
	s := &Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		User:         User{ID: tr.User.ID, Email: tr.User.Email},
	}
	switch {
	case tr.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(tr.ExpiresAt, 0)
	case tr.ExpiresIn > 0:
		s.ExpiresAt = p.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}

	if p.cfg.JWTSecret == "" {
		return s, nil
	}
	claims, err := p.verify(tr.AccessToken)
	if err != nil {
		return nil, err
	}
	if s.User.ID == "" {
		s.User.ID = claims.Subject
	}
	if claims.Subject != s.User.ID {
		return nil, errors.New("token subject does not match user")
	}
	if s.User.Email == "" {
		s.User.Email = claims.Email
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

func (p *GoTrueProvider) verify(raw string) (*accessClaims, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(p.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil, errors.Wrap(err, "verify access token")
	}
	return claims, nil
}

// SignOut clears the local session before revoking it remotely, so
// listeners never observe a signed-in state after this call starts.
func (p *GoTrueProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	session := p.session
	p.session = nil
	p.stopExpiryLocked()
	p.mu.Unlock()

	p.emit(EventSignedOut, nil)

	if session == nil {
		return nil
	}
	resp, err := p.do(ctx, http.MethodPost, "/logout", session.AccessToken, nil)
	if err != nil {
		return apperr.DataAccess("sign out", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusNotFound {
		return apperr.DataAccess("sign out", fmt.Errorf("gotrue returned %d", resp.StatusCode))
	}
	return nil
}

// GetSession treats an expired token as no session and announces the
// sign-out if the expiry timer has not done so yet.
func (p *GoTrueProvider) GetSession(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	if p.session == nil {
		p.mu.Unlock()
		return nil, nil
	}
	if p.session.Expired(p.now()) {
		p.session = nil
		p.stopExpiryLocked()
		p.mu.Unlock()
		p.emit(EventSignedOut, nil)
		return nil, nil
	}
	s := *p.session
	p.mu.Unlock()
	return &s, nil
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Unsubscribe() { s.once.Do(s.cancel) }

func (p *GoTrueProvider) OnAuthStateChange(handler StateChangeHandler) Subscription {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.handlers[id] = handler
	p.mu.Unlock()

	return &subscription{cancel: func() {
		p.mu.Lock()
		delete(p.handlers, id)
		p.mu.Unlock()
	}}
}

func (p *GoTrueProvider) emit(event Event, session *Session) {
	p.mu.Lock()
	handlers := make([]StateChangeHandler, 0, len(p.handlers))
	for _, h := range p.handlers {
		handlers = append(handlers, h)
	}
	p.mu.Unlock()

	for _, h := range handlers {
		var s *Session
		if session != nil {
			cp := *session
			s = &cp
		}
		h(event, s)
	}
}

func (p *GoTrueProvider) do(ctx context.Context, method, path, bearer string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(p.cfg.URL, "/")+path, r)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.AnonKey != "" {
		req.Header.Set("apikey", p.cfg.AnonKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return p.client.Do(req)
}
