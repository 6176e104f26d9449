// Package auth holds the bearer credential used by the remote client and
// keeps it in step with the token file written by login and logout.
package auth

import (
	"strings"
	"sync"
)

// TokenSource is the process-wide credential provider. It is safe for
// concurrent use; the zero value is not usable, call NewTokenSource.
type TokenSource struct {
	mu     sync.RWMutex
	token  string
	nextID int
	subs   map[int]chan string
}

// NewTokenSource returns a source holding the given initial token.
func NewTokenSource(initial string) *TokenSource {
	return &TokenSource{
		token: strings.TrimSpace(initial),
		subs:  make(map[int]chan string),
	}
}

// Token returns the current token, or "" when logged out.
func (s *TokenSource) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// HasToken reports whether a token is currently available.
func (s *TokenSource) HasToken() bool {
	return s.Token() != ""
}

// Set replaces the token. Subscribers are notified only on change.
func (s *TokenSource) Set(token string) {
	token = strings.TrimSpace(token)

	s.mu.Lock()
	defer s.mu.Unlock()
	if token == s.token {
		return
	}
	s.token = token
	for _, ch := range s.subs {
		offerLatest(ch, token)
	}
}

// Clear drops the token.
func (s *TokenSource) Clear() {
	s.Set("")
}

// Subscribe returns a channel delivering the token after each change, and a
// cancel func that must be called to release it. Delivery is last-value-wins:
// a slow reader sees the newest token, never a backlog.
func (s *TokenSource) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// offerLatest puts v into a 1-slot channel, replacing any unread value.
// Callers must serialize sends to ch.
func offerLatest(ch chan string, v string) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
