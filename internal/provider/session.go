package provider

import (
	"context"
	"sync"
	"time"
)

// session caches one vendor credential with a bounded validity window.
// Renewal is serialized behind the mutex so concurrent callers never race
// to renew independently. Tokens are never persisted.
type session struct {
	mu       sync.Mutex
	token    string
	expiry   time.Time
	lifetime time.Duration
}

func newSession(lifetime time.Duration) *session {
	return &session{lifetime: lifetime}
}

// ensure returns the cached token while valid, otherwise performs exactly
// one blocking renewal. A failed renewal leaves no partial state.
func (s *session) ensure(ctx context.Context, renew func(ctx context.Context) (string, error)) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.expiry) {
		return s.token, nil
	}

	token, err := renew(ctx)
	if err != nil {
		s.token = ""
		s.expiry = time.Time{}
		return "", err
	}

	s.token = token
	s.expiry = time.Now().Add(s.lifetime)
	return token, nil
}

// invalidate drops the cached token after the vendor reported it expired.
func (s *session) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiry = time.Time{}
}
