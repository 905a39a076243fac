package identity

import (
	"context"
	"errors"
	"sync"
)

const subscriptionBuffer = 8

// Change is one identity transition. A zero Current means signed out.
type Change struct {
	Previous Identity
	Current  Identity
}

// Subscription delivers identity changes until Close is called.
type Subscription struct {
	C <-chan Change

	ch      chan Change
	session *Session
	once    sync.Once
}

// Close stops delivery and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.session.unsubscribe(s)
	})
}

// Session holds the identity of one long-lived caller, such as an MCP
// process, and notifies subscribers when it changes.
type Session struct {
	verifier *Verifier

	mu      sync.Mutex
	current Identity
	claims  Claims
	subs    map[*Subscription]struct{}
}

// NewSession returns a signed-out session.
func NewSession(verifier *Verifier) *Session {
	return &Session{verifier: verifier, subs: map[*Subscription]struct{}{}}
}

// Current returns the signed-in identity, if any. A session whose token has
// expired is signed out first.
func (s *Session) Current() (Identity, bool) {
	if s == nil {
		return Identity{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	return s.current, !s.current.IsZero()
}

// CurrentContext is Current plus a revocation check, so a token signed out
// elsewhere ends this session too. A failed check reports no identity but
// keeps the session.
func (s *Session) CurrentContext(ctx context.Context) (Identity, bool) {
	if s == nil {
		return Identity{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	if s.current.IsZero() {
		return Identity{}, false
	}
	revoked, err := s.verifier.isRevoked(ctx, s.claims.TokenID)
	if err != nil {
		return Identity{}, false
	}
	if revoked {
		s.claims = Claims{}
		s.setLocked(Identity{})
		return Identity{}, false
	}
	return s.current, true
}

func (s *Session) expireLocked() {
	if s.current.IsZero() || s.verifier == nil {
		return
	}
	if s.claims.ExpiresAt.After(s.verifier.cfg.now()) {
		return
	}
	s.claims = Claims{}
	s.setLocked(Identity{})
}

// SignIn verifies token and makes its identity current.
func (s *Session) SignIn(ctx context.Context, token string) (Identity, error) {
	if s == nil || s.verifier == nil {
		return Identity{}, errors.New("identity session is not configured")
	}
	claims, err := s.verifier.VerifyClaims(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims = claims
	s.setLocked(claims.Identity)
	return claims.Identity, nil
}

// SignOut revokes the current token and clears the identity.
func (s *Session) SignOut(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	if s.current.IsZero() {
		return nil
	}
	if err := s.verifier.Revoke(ctx, s.claims); err != nil {
		return err
	}
	s.claims = Claims{}
	s.setLocked(Identity{})
	return nil
}

// Subscribe registers for identity changes. Slow subscribers lose the oldest
// undelivered change rather than blocking the session.
func (s *Session) Subscribe() *Subscription {
	ch := make(chan Change, subscriptionBuffer)
	sub := &Subscription{C: ch, ch: ch, session: s}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub] = struct{}{}
	return sub
}

func (s *Session) unsubscribe(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub]; !ok {
		return
	}
	delete(s.subs, sub)
	close(sub.ch)
}

func (s *Session) setLocked(next Identity) {
	previous := s.current
	s.current = next
	if previous == next {
		return
	}
	change := Change{Previous: previous, Current: next}
	for sub := range s.subs {
		select {
		case sub.ch <- change:
			continue
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- change:
		default:
		}
	}
}
