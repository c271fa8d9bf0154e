// Package feed holds the client-side state of a signed-in user: the auth session
// and the view of the direct conversation currently on screen.
package feed

import (
	"errors"
	"sync"

	"homehive/internal/models"
)

// SessionEventKind tells subscribers what changed.
type SessionEventKind int

const (
	SignedIn SessionEventKind = iota + 1
	SignedOut
)

func (k SessionEventKind) String() string {
	switch k {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}

// SessionEvent is delivered to subscribers on sign-in and sign-out. User is the
// user signing in, or the one who just signed out.
type SessionEvent struct {
	Kind SessionEventKind
	User *models.User
}

var ErrNotSignedIn = errors.New("not signed in")

// Session is the single auth context of a client. Subscribers are called
// synchronously, in subscription order, after the state has changed.
type Session struct {
	mu     sync.RWMutex
	user   *models.User
	token  string
	subs   map[int]func(SessionEvent)
	order  []int
	nextID int
}

func NewSession() *Session {
	return &Session{subs: make(map[int]func(SessionEvent))}
}

// SignIn replaces any current user. Signing in over an existing session emits
// SignedOut for the previous user first.
func (s *Session) SignIn(user *models.User, token string) error {
	if user == nil || user.ID == 0 {
		return errors.New("sign in requires a user")
	}
	if token == "" {
		return errors.New("sign in requires a token")
	}

	s.mu.Lock()
	previous := s.user
	u := *user
	s.user = &u
	s.token = token
	subs := s.subscribersLocked()
	s.mu.Unlock()

	if previous != nil {
		notify(subs, SessionEvent{Kind: SignedOut, User: previous})
	}
	notify(subs, SessionEvent{Kind: SignedIn, User: &u})
	return nil
}

// SignOut clears the session. It is a no-op when nobody is signed in.
func (s *Session) SignOut() {
	s.mu.Lock()
	previous := s.user
	s.user = nil
	s.token = ""
	subs := s.subscribersLocked()
	s.mu.Unlock()

	if previous != nil {
		notify(subs, SessionEvent{Kind: SignedOut, User: previous})
	}
}

// Current returns a copy of the signed-in user, or nil.
func (s *Session) Current() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// UserID returns the signed-in user's id, or zero.
func (s *Session) UserID() uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return 0
	}
	return s.user.ID
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Subscribe registers fn for session changes and returns a function that removes
// it. The returned function may be called more than once.
func (s *Session) Subscribe(fn func(SessionEvent)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
			s.mu.Unlock()
		})
	}
}

func (s *Session) subscribersLocked() []func(SessionEvent) {
	out := make([]func(SessionEvent), 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.subs[id])
	}
	return out
}

func notify(subs []func(SessionEvent), ev SessionEvent) {
	for _, fn := range subs {
		fn(ev)
	}
}
