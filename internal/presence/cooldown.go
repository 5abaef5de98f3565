// Package presence implements the Cooldown & Guest Tracker (spec §4.5) and
// a thin wrapper around the relational Presence Store (spec §4.6). Both
// trackers are built on hashicorp/golang-lru/v2, grounded on
// internal/nvr/event_dedup.go's EventDedup: a bounded cache with a TTL
// check on read and a refresh on write.
package presence

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"
)

// CooldownTable suppresses repeat presence upserts for the same
// (room, student) pair within COOLDOWN_SECONDS.
type CooldownTable struct {
	mu     sync.Mutex
	cache  *lru.Cache[string, time.Time]
	window time.Duration
}

func NewCooldownTable(maxKeys int, windowSeconds int) *CooldownTable {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	c, _ := lru.New[string, time.Time](maxKeys)
	return &CooldownTable{cache: c, window: time.Duration(windowSeconds) * time.Second}
}

func cooldownKey(roomID, studentID uuid.UUID) string {
	return roomID.String() + "|" + studentID.String()
}

// IsHot returns true iff the last mark for this pair is within the
// cooldown window.
func (c *CooldownTable) IsHot(roomID, studentID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.cache.Get(cooldownKey(roomID, studentID))
	if !ok {
		return false
	}
	return time.Since(last) < c.window
}

// Mark records now as the last update time for the pair.
func (c *CooldownTable) Mark(roomID, studentID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(cooldownKey(roomID, studentID), time.Now())
}

// Len reports the current number of tracked (room, student) entries,
// used by the dispatcher's opportunistic-sweep-at-100 trigger.
func (c *CooldownTable) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// Sweep removes entries older than 2x the cooldown window. The LRU cache
// has no native "evict by age" operation, so this walks the key list and
// evicts explicitly — acceptable since Sweep only runs opportunistically,
// not on the hot path.
func (c *CooldownTable) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := 2 * c.window
	removed := 0
	for _, key := range c.cache.Keys() {
		last, ok := c.cache.Peek(key)
		if !ok {
			continue
		}
		if time.Since(last) >= cutoff {
			c.cache.Remove(key)
			removed++
		}
	}
	return removed
}
