// Package invite holds the ephemeral invite-code registry. Codes map to a
// family ID, expire after a fixed TTL and are never persisted.
package invite

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"
)

// Excludes 0/O/1/I so codes survive being read aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 6

// DefaultTTL is how long an unredeemed code stays valid.
const DefaultTTL = time.Hour

type entry struct {
	familyID  string
	createdAt time.Time
}

// Registry is an in-memory code-to-family mapping with self-expiring
// entries. Redemption is a plain lookup; the caller deletes the code once
// pairing actually succeeded.
type Registry struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

func New(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Issue generates a fresh code for the family and schedules its removal.
// Collisions in the 32^6 code space are retried.
func (r *Registry) Issue(familyID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; attempt < 10; attempt++ {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		if _, exists := r.entries[code]; exists {
			continue
		}
		r.entries[code] = entry{familyID: familyID, createdAt: r.now()}
		time.AfterFunc(r.ttl, func() { r.Delete(code) })
		return code, nil
	}
	return "", fmt.Errorf("could not generate a unique invite code")
}

// Redeem looks the code up. Expired entries are treated as absent even if
// the scheduled removal has not fired yet.
func (r *Registry) Redeem(code string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[code]
	if !ok {
		return "", false
	}
	if r.now().Sub(e.createdAt) >= r.ttl {
		delete(r.entries, code)
		return "", false
	}
	return e.familyID, true
}

// Delete removes a code, typically after a successful pairing.
func (r *Registry) Delete(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, code)
}

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate invite code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
