package presence

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"
)

// SpatialKey derives the coarse bbox-centroid bucket used to approximate
// "same unknown person, same spot" across the short presence-timeout
// window, per spec §4.4/§4.5. bbox is [x1,y1,x2,y2] in pixels.
func SpatialKey(bbox [4]float64) string {
	cx := (bbox[0] + bbox[2]) / 2
	cy := (bbox[1] + bbox[3]) / 2
	qx := math.Floor(cx/50) * 50
	qy := math.Floor(cy/50) * 50
	return fmt.Sprintf("%d,%d", int64(qx), int64(qy))
}

// GuestTracker counts anonymous faces per room using spatial hashing, with
// no cross-frame appearance-based identity (spec's Guest Identity open
// question, deliberately left as specified).
type GuestTracker struct {
	mu      sync.Mutex
	cache   *lru.Cache[string, time.Time]
	timeout time.Duration
}

func NewGuestTracker(maxKeys int, presenceTimeoutSeconds int) *GuestTracker {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	c, _ := lru.New[string, time.Time](maxKeys)
	return &GuestTracker{cache: c, timeout: time.Duration(presenceTimeoutSeconds) * time.Second}
}

func guestKey(roomID uuid.UUID, spatialKey string) string {
	return roomID.String() + "|" + spatialKey
}

func (g *GuestTracker) Update(roomID uuid.UUID, spatialKey string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache.Add(guestKey(roomID, spatialKey), time.Now())
}

// ActiveCount counts guest slots in roomID last seen within the presence
// timeout window.
func (g *GuestTracker) ActiveCount(roomID uuid.UUID) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	prefix := roomID.String() + "|"
	count := 0
	cutoff := time.Now().Add(-g.timeout)
	for _, key := range g.cache.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		lastSeen, ok := g.cache.Peek(key)
		if !ok {
			continue
		}
		if lastSeen.After(cutoff) || lastSeen.Equal(cutoff) {
			count++
		}
	}
	return count
}

// Sweep removes stale guest slots (outside the presence timeout window).
func (g *GuestTracker) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := time.Now().Add(-g.timeout)
	removed := 0
	for _, key := range g.cache.Keys() {
		lastSeen, ok := g.cache.Peek(key)
		if !ok {
			continue
		}
		if lastSeen.Before(cutoff) {
			g.cache.Remove(key)
			removed++
		}
	}
	return removed
}

func (g *GuestTracker) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cache.Len()
}
