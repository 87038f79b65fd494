package attendance

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReplayGuard_Check(t *testing.T) {
	issuedAt := time.Date(2026, time.October, 12, 9, 0, 0, 0, time.UTC)
	tok := Token{Nonce: "lec-1-1760259600000-a1b2c3d4e5f6", IssuedAt: issuedAt}

	tests := []struct {
		name      string
		ttl       time.Duration
		studentID string
		now       time.Time
		wantErr   error
	}{
		{name: "fresh", ttl: 5 * time.Minute, studentID: "s1", now: issuedAt.Add(time.Minute)},
		{name: "replayed by the same student", ttl: 5 * time.Minute, studentID: "s1", now: issuedAt.Add(2 * time.Minute), wantErr: ErrTokenReplayed},
		{name: "another student", ttl: 5 * time.Minute, studentID: "s2", now: issuedAt.Add(2 * time.Minute)},
		{name: "at the ttl", ttl: 5 * time.Minute, studentID: "s3", now: issuedAt.Add(5 * time.Minute)},
		{name: "past the ttl", ttl: 5 * time.Minute, studentID: "s4", now: issuedAt.Add(5*time.Minute + time.Second), wantErr: ErrTokenExpired},
		{name: "slightly in the future", ttl: 5 * time.Minute, studentID: "s5", now: issuedAt.Add(-30 * time.Second)},
		{name: "far in the future", ttl: 5 * time.Minute, studentID: "s6", now: issuedAt.Add(-2 * time.Minute), wantErr: ErrTokenExpired},
	}
	guard := NewReplayGuard(5 * time.Minute)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.Check(tok, tt.studentID, tt.now)
			assert.Equal(t, tt.wantErr, err)
			if err == nil {
				guard.Commit(tok, tt.studentID, tt.now)
			}
		})
	}
}

func TestReplayGuard_disabled(t *testing.T) {
	guard := NewReplayGuard(0)
	tok := Token{Nonce: "n", IssuedAt: time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)}
	for i := 0; i < 3; i++ {
		assert.NoError(t, guard.Check(tok, "s1", time.Now()))
		guard.Commit(tok, "s1", time.Now())
	}
	assert.Equal(t, 0, guard.Len())

	var nilGuard *ReplayGuard
	assert.NoError(t, nilGuard.Check(tok, "s1", time.Now()))
	nilGuard.Commit(tok, "s1", time.Now())
}

func TestReplayGuard_prune(t *testing.T) {
	ttl := time.Minute
	guard := NewReplayGuard(ttl)
	start := time.Date(2026, time.October, 12, 9, 0, 0, 0, time.UTC)

	for i, nonce := range []string{"a", "b", "c"} {
		now := start.Add(time.Duration(i) * time.Second)
		guard.Commit(Token{Nonce: nonce, IssuedAt: now}, "s1", now)
	}
	assert.Equal(t, 3, guard.Len())

	later := start.Add(3 * ttl)
	guard.Commit(Token{Nonce: "d", IssuedAt: later}, "s1", later)
	assert.Equal(t, 1, guard.Len())
}

func TestReplayGuard_checkRecordsNothing(t *testing.T) {
	guard := NewReplayGuard(time.Hour)
	now := time.Now()
	tok := Token{Nonce: "n", IssuedAt: now}

	// a scan whose record failed to save can be retried
	for i := 0; i < 3; i++ {
		assert.NoError(t, guard.Check(tok, "s1", now))
	}
	assert.Equal(t, 0, guard.Len())

	guard.Commit(tok, "s1", now)
	assert.Equal(t, ErrTokenReplayed, guard.Check(tok, "s1", now))
}

func TestReplayGuard_concurrent(t *testing.T) {
	guard := NewReplayGuard(time.Hour)
	now := time.Now()
	tok := Token{Nonce: "shared", IssuedAt: now}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			studentID := fmt.Sprintf("s%d", i%5)
			if guard.Check(tok, studentID, now) == nil {
				guard.Commit(tok, studentID, now)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, guard.Len())
	for i := 0; i < 5; i++ {
		assert.Equal(t, ErrTokenReplayed, guard.Check(tok, fmt.Sprintf("s%d", i), now))
	}
}
