package chat

import (
	"strings"
	"sync"
)

// Session carries the identity of the logged-in user. It is created at login
// and closed at logout; every component that talks to the API holds one.
type Session struct {
	baseURL string
	user    User

	mu     sync.RWMutex
	token  string
	closed bool
}

func NewSession(baseURL, token string, user User) *Session {
	return &Session{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		user:    user,
	}
}

func (s *Session) BaseURL() string { return s.baseURL }

func (s *Session) User() User { return s.user }

// Token returns the bearer token, or ErrSessionClosed after Close.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	return s.token, nil
}

func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close forgets the token. Requests made through a closed session fail.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.token = ""
}
