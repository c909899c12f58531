package bot

import (
	"context"
	"sync"
	"time"
)

const (
	stepClientName  = "waiting_client_name"
	stepClientEmail = "waiting_client_email"
)

const defaultSessionTTL = time.Minute * 10

// invoiceSession is one in-progress invoice form. Sessions live in a
// process-wide table keyed by platform user id and expire after a TTL, so an
// abandoned form never lingers.
type invoiceSession struct {
	Step        string
	Amount      int64
	Description string
	ClientName  string

	expiresAt time.Time
}

type sessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*invoiceSession
}

func newSessionStore(ttl time.Duration) *sessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &sessionStore{
		ttl:      ttl,
		sessions: make(map[string]*invoiceSession),
	}
}

func (s *sessionStore) Get(key string) (*invoiceSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(sess.expiresAt) {
		delete(s.sessions, key)
		return nil, false
	}
	return sess, true
}

// Put stores the session and refreshes its deadline.
func (s *sessionStore) Put(key string, sess *invoiceSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess.expiresAt = time.Now().Add(s.ttl)
	s.sessions[key] = sess
}

func (s *sessionStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
}

// Sweep drops expired sessions periodically until the context ends.
func (s *sessionStore) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, sess := range s.sessions {
				if now.After(sess.expiresAt) {
					delete(s.sessions, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
