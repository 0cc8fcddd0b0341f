package server

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"passvault/internal/observability"
)

const (
	tokenLength   = 8
	tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	sweepInterval = 5 * time.Second
)

// session holds the per-token login state between exchanges.
type session struct {
	created     time.Time
	loginNumber []byte
	loginUser   string
	userID      int64
	loggedIn    bool
}

// sessionTable maps tokens to sessions and expires them after ttl.
type sessionTable struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*session
}

func newSessionTable(ttl time.Duration) *sessionTable {
	return &sessionTable{
		ttl:      ttl,
		sessions: make(map[string]*session),
	}
}

// Create mints a fresh unique token and opens a session under it.
func (t *sessionTable) Create() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var token string
	for {
		token = randomToken(tokenLength)
		if _, taken := t.sessions[token]; !taken {
			break
		}
	}
	t.sessions[token] = &session{created: time.Now()}
	observability.SetOpenSessions(len(t.sessions))
	return token
}

func (t *sessionTable) Get(token string) *session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions[token]
}

func (t *sessionTable) Close(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, token)
	observability.SetOpenSessions(len(t.sessions))
}

// sweep removes expired sessions until ctx is cancelled.
func (t *sessionTable) sweep(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.expire()
		}
	}
}

func (t *sessionTable) expire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	for token, sn := range t.sessions {
		if now.Sub(sn.created) > t.ttl {
			delete(t.sessions, token)
			log.Debug().Str("token", token).Msg("session_expired")
		}
	}
	observability.SetOpenSessions(len(t.sessions))
}

func randomToken(length int) string {
	out := make([]byte, length)
	max := big.NewInt(int64(len(tokenAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		out[i] = tokenAlphabet[n.Int64()]
	}
	return string(out)
}
