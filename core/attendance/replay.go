package attendance

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MaxClockSkew is how far in the future a token may be issued before it is refused.
const MaxClockSkew = time.Minute

var (
	ErrTokenExpired  = errors.New("expired")
	ErrTokenReplayed = errors.New("replayed")
)

type replayKey struct {
	nonce     string
	studentID string
}

// ReplayGuard rejects stale tokens and a student reusing a nonce.
// Other students may scan the same QR code. A zero TTL disables the guard.
type ReplayGuard struct {
	ttl time.Duration

	mu        sync.Mutex
	consumed  map[replayKey]time.Time // key -> token issuedAt
	lastPrune time.Time
}

func NewReplayGuard(ttl time.Duration) *ReplayGuard {
	return &ReplayGuard{
		ttl:      ttl,
		consumed: make(map[replayKey]time.Time),
	}
}

func (g *ReplayGuard) Enabled() bool { return g != nil && g.ttl > 0 }

// Check refuses a stale tok, or one studentID already committed. It records nothing.
func (g *ReplayGuard) Check(tok Token, studentID string, now time.Time) error {
	if !g.Enabled() {
		return nil
	}
	if tok.IssuedAt.After(now.Add(MaxClockSkew)) || now.Sub(tok.IssuedAt) > g.ttl {
		return ErrTokenExpired
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.consumed[replayKey{nonce: tok.Nonce, studentID: studentID}]; ok {
		return ErrTokenReplayed
	}
	return nil
}

// Commit marks the nonce of tok as used by studentID, once its attendance is saved.
func (g *ReplayGuard) Commit(tok Token, studentID string, now time.Time) {
	if !g.Enabled() {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.prune(now)
	g.consumed[replayKey{nonce: tok.Nonce, studentID: studentID}] = tok.IssuedAt
}

// prune drops entries whose token has expired anyway. Runs at most once per TTL.
func (g *ReplayGuard) prune(now time.Time) {
	if now.Sub(g.lastPrune) < g.ttl {
		return
	}
	for key, issuedAt := range g.consumed {
		if now.Sub(issuedAt) > g.ttl {
			delete(g.consumed, key)
		}
	}
	g.lastPrune = now
}

// Len returns the number of tracked (nonce, student) pairs.
func (g *ReplayGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.consumed)
}
