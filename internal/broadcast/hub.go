// Package broadcast is the fan-out point between the recognition pipeline
// and connected dashboards/cameras: three subscription namespaces (room
// presence, camera stream, global presence), best-effort JSON and binary
// publish, and a NATS relay for multi-instance deployments.
package broadcast

import (
	"sync"
	"time"
)

// Sink receives either JSON-encoded events or raw binary frames. A sink whose
// send returns an error is pruned. Sends run one sink after another on the
// publisher's goroutine, so a slow sink delays the sinks after it.
type Sink interface {
	SendJSON(v any) error
	SendBinary(b []byte) error
	ID() string
}

type namespace struct {
	mu   sync.RWMutex
	subs map[string]map[string]Sink // key -> sink id -> sink
}

func newNamespace() *namespace {
	return &namespace{subs: make(map[string]map[string]Sink)}
}

func (n *namespace) subscribe(key string, sink Sink) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs[key] == nil {
		n.subs[key] = make(map[string]Sink)
	}
	n.subs[key][sink.ID()] = sink
}

func (n *namespace) unsubscribe(key string, sinkID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	bucket, ok := n.subs[key]
	if !ok {
		return
	}
	delete(bucket, sinkID)
	if len(bucket) == 0 {
		delete(n.subs, key)
	}
}

// snapshot returns a copy of the sinks for key so publish can iterate
// without holding the lock across network I/O.
func (n *namespace) snapshot(key string) []Sink {
	n.mu.RLock()
	defer n.mu.RUnlock()
	bucket := n.subs[key]
	out := make([]Sink, 0, len(bucket))
	for _, s := range bucket {
		out = append(out, s)
	}
	return out
}

func (n *namespace) prune(key string, deadIDs []string) {
	if len(deadIDs) == 0 {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	bucket, ok := n.subs[key]
	if !ok {
		return
	}
	for _, id := range deadIDs {
		delete(bucket, id)
	}
	if len(bucket) == 0 {
		delete(n.subs, key)
	}
}

// Namespace identifiers, matching the three subscription channels.
const (
	NSRoomPresence   = "room"
	NSCameraStream   = "camera"
	NSGlobalPresence = "global"
)

const globalKey = "_"

// Hub is the in-process pub/sub fanout. A Hub with a nil Relay behaves
// identically to a single-instance deployment; SetRelay wires in
// cross-instance fan-out over NATS.
type Hub struct {
	room   *namespace
	camera *namespace
	global *namespace

	relay *Relay
}

func NewHub() *Hub {
	return &Hub{
		room:   newNamespace(),
		camera: newNamespace(),
		global: newNamespace(),
	}
}

func (h *Hub) SetRelay(r *Relay) { h.relay = r }

func (h *Hub) nsFor(ns string) *namespace {
	switch ns {
	case NSRoomPresence:
		return h.room
	case NSCameraStream:
		return h.camera
	case NSGlobalPresence:
		return h.global
	default:
		return nil
	}
}

// Subscribe registers sink under namespace/key. Global presence ignores key.
func (h *Hub) Subscribe(ns, key string, sink Sink) {
	n := h.nsFor(ns)
	if n == nil {
		return
	}
	if ns == NSGlobalPresence {
		key = globalKey
	}
	n.subscribe(key, sink)
}

func (h *Hub) Unsubscribe(ns, key, sinkID string) {
	n := h.nsFor(ns)
	if n == nil {
		return
	}
	if ns == NSGlobalPresence {
		key = globalKey
	}
	n.unsubscribe(key, sinkID)
}

// PublishJSON fans v out to every subscriber of ns/key, pruning any sink
// whose SendJSON errors. Also relays to NATS if a Relay is configured, so
// other control-plane replicas observe the same event.
func (h *Hub) PublishJSON(ns, key string, v any) {
	n := h.nsFor(ns)
	if n == nil {
		return
	}
	lookupKey := key
	if ns == NSGlobalPresence {
		lookupKey = globalKey
	}

	sinks := n.snapshot(lookupKey)
	var dead []string
	for _, s := range sinks {
		if err := s.SendJSON(v); err != nil {
			dead = append(dead, s.ID())
		}
	}
	n.prune(lookupKey, dead)

	if h.relay != nil {
		h.relay.publishJSON(ns, key, v)
	}
}

// PublishBinary fans a raw frame out to camera-stream subscribers only.
func (h *Hub) PublishBinary(cameraID string, b []byte) {
	sinks := h.camera.snapshot(cameraID)
	var dead []string
	for _, s := range sinks {
		if err := s.SendBinary(b); err != nil {
			dead = append(dead, s.ID())
		}
	}
	h.camera.prune(cameraID, dead)
}

// now is overridable indirection so event builders don't call time.Now
// directly in more than one place.
func now() time.Time { return time.Now() }
