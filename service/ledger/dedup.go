package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/viant/toolbox"

	"github.com/sigil-dev/actgate/internal/clock"
)

// DefaultDedupTTL bounds how long a fingerprint is remembered.
const DefaultDedupTTL = 24 * time.Hour

// Fingerprint derives a stable dedup key from an action kind, target and
// parameter payload. Parameters are normalized first so that equivalent
// payloads with different concrete types or empty members hash identically.
func Fingerprint(actionKind, target string, parameters map[string]interface{}) (string, error) {
	normalized := map[string]interface{}{}
	if len(parameters) > 0 {
		if err := toolbox.DefaultConverter.AssignConverted(&normalized, parameters); err != nil {
			return "", fmt.Errorf("failed to normalize parameters: %w", err)
		}
		normalized = toolbox.DeleteEmptyKeys(normalized)
	}
	canonical, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("failed to marshal parameters: %w", err)
	}
	digest := sha256.New()
	digest.Write([]byte(actionKind))
	digest.Write([]byte{0})
	digest.Write([]byte(target))
	digest.Write([]byte{0})
	digest.Write(canonical)
	return hex.EncodeToString(digest.Sum(nil)), nil
}

type dedupEntry struct {
	proposalID string
	expiresAt  time.Time
}

// Tracker remembers which proposal owns a dedup fingerprint. Entries stay
// until their TTL elapses, including after the proposal completes, so that
// replayed submissions can be cross-referenced to the prior outcome.
type Tracker struct {
	ttl     time.Duration
	mu      sync.Mutex
	entries map[string]dedupEntry
}

// NewTracker creates a tracker with the supplied TTL (DefaultDedupTTL when
// zero or negative).
func NewTracker(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &Tracker{
		ttl:     ttl,
		entries: make(map[string]dedupEntry),
	}
}

// Observe records key as owned by proposalID, refreshing the TTL.
func (t *Tracker) Observe(key, proposalID string) {
	if key == "" || proposalID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = dedupEntry{proposalID: proposalID, expiresAt: clock.Now().Add(t.ttl)}
}

// Lookup returns the proposal owning key, if any.
func (t *Tracker) Lookup(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune(clock.Now())
	entry, ok := t.entries[key]
	if !ok {
		return "", false
	}
	return entry.proposalID, true
}

// prune drops expired entries; callers hold t.mu.
func (t *Tracker) prune(now time.Time) {
	for key, entry := range t.entries {
		if now.After(entry.expiresAt) {
			delete(t.entries, key)
		}
	}
}
