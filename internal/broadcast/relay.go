package broadcast

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
)

// Relay publishes Hub events onto NATS subjects and re-injects events
// received from other instances back into the local Hub, so horizontally
// scaled control-plane replicas converge on the same presence view. A Hub
// with no Relay attached behaves exactly like a single-instance deployment.
type Relay struct {
	conn       *nats.Conn
	maxRetries int
	instanceID string
	subs       []*nats.Subscription
}

func NewRelay(conn *nats.Conn, instanceID string, maxRetries int) *Relay {
	return &Relay{conn: conn, instanceID: instanceID, maxRetries: maxRetries}
}

type relayEnvelope struct {
	Namespace  string          `json:"ns"`
	Key        string          `json:"key"`
	InstanceID string          `json:"instance_id"`
	Payload    json.RawMessage `json:"payload"`
}

func subjectFor(ns, key string) string {
	switch ns {
	case NSRoomPresence:
		return "presence.room." + key
	case NSGlobalPresence:
		return "presence.global"
	case NSCameraStream:
		return "detection.camera." + key
	default:
		return "presence.misc"
	}
}

func (r *Relay) publishJSON(ns, key string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("broadcast: relay marshal failed: %v", err)
		return
	}
	env := relayEnvelope{Namespace: ns, Key: key, InstanceID: r.instanceID, Payload: payload}
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("broadcast: relay envelope marshal failed: %v", err)
		return
	}

	subject := subjectFor(ns, key)
	var pubErr error
	for i := 0; i <= r.maxRetries; i++ {
		pubErr = r.conn.Publish(subject, data)
		if pubErr == nil {
			return
		}
	}
	log.Printf("broadcast: relay publish to %s failed after %d attempts: %v", subject, r.maxRetries+1, pubErr)
}

// Subscribe starts listening on the room/global/camera wildcard subjects
// and re-publishes remote events (those not originated by this instance)
// into hub. Call once at startup; the returned error only reflects the
// initial subscribe calls.
func (r *Relay) Subscribe(hub *Hub) error {
	subjects := []string{"presence.room.*", "presence.global", "detection.camera.*"}
	for _, subject := range subjects {
		sub, err := r.conn.Subscribe(subject, func(msg *nats.Msg) {
			var env relayEnvelope
			if err := json.Unmarshal(msg.Data, &env); err != nil {
				return
			}
			if env.InstanceID == r.instanceID {
				return
			}
			var payload map[string]any
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				return
			}
			hub.republish(env.Namespace, env.Key, payload)
		})
		if err != nil {
			return fmt.Errorf("broadcast: subscribe %s: %w", subject, err)
		}
		r.subs = append(r.subs, sub)
	}
	return nil
}

func (r *Relay) Close() {
	for _, sub := range r.subs {
		_ = sub.Unsubscribe()
	}
}

// republish fans out a remotely-received event without re-relaying it,
// breaking the echo loop between instances.
func (h *Hub) republish(ns, key string, v any) {
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
}
