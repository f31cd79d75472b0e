// Package tenant holds the signed-in user's school session: the bearer
// token for the site API and the school it belongs to.
package tenant

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"pagebuilder/internal/secret"
)

// ErrNotLoggedIn is returned by Token when there is no session.
var ErrNotLoggedIn = errors.New("not logged in")

const secretKey = "tenant-session"

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Session is the persisted auth and school context.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	SchoolID  string    `json:"schoolId"`
	Subdomain string    `json:"subdomain"`
	User      User      `json:"user"`
}

// Store is the process-wide tenant state. Construct one at startup, call
// Hydrate, and inject it where needed.
type Store struct {
	mu      sync.RWMutex
	secrets secret.SecretStore
	current *Session
}

var _ oauth2.TokenSource = (*Store)(nil)

func NewStore(secrets secret.SecretStore) *Store {
	return &Store{secrets: secrets}
}

// Hydrate loads a previously persisted session. A missing session is not
// an error.
func (s *Store) Hydrate() error {
	raw, err := s.secrets.Get(secretKey)
	if err != nil {
		return fmt.Errorf("hydrate tenant: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(raw) == 0 {
		s.current = nil
		return nil
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return fmt.Errorf("hydrate tenant: %w", err)
	}
	s.current = &sess
	logrus.WithFields(logrus.Fields{
		"school_id": sess.SchoolID,
		"subdomain": sess.Subdomain,
	}).Debug("tenant session restored")
	return nil
}

// Login replaces the current session and persists it.
func (s *Store) Login(sess Session) error {
	if sess.Token == "" {
		return errors.New("login: empty token")
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := s.secrets.Set(secretKey, raw); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()
	return nil
}

// Logout clears memory and storage.
func (s *Store) Logout() error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	if err := s.secrets.Delete(secretKey); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Current returns a copy of the session, if any.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// Subdomain returns the current school subdomain, or "".
func (s *Store) Subdomain() string {
	sess, _ := s.Current()
	return sess.Subdomain
}

// Token implements oauth2.TokenSource.
func (s *Store) Token() (*oauth2.Token, error) {
	sess, ok := s.Current()
	if !ok {
		return nil, ErrNotLoggedIn
	}
	tok := &oauth2.Token{
		AccessToken: sess.Token,
		TokenType:   "Bearer",
		Expiry:      sess.ExpiresAt,
	}
	if !tok.Valid() {
		return nil, fmt.Errorf("tenant token expired at %s", sess.ExpiresAt.Format(time.RFC3339))
	}
	return tok, nil
}
