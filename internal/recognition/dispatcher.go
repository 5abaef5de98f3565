// Package recognition is the per-frame decision layer between Stream
// Workers and everything downstream (Vector Index, Cooldown/Guest
// trackers, Presence Store, Broadcast Hub). Its external-model boundary is
// faceengine.Engine, grounded on cmd/ai-service/inference.go's
// model-pluggability pattern: the rest of the pipeline runs unmodified
// whether Engine is the deterministic stub or a real backend.
package recognition

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/technosupport/campus-presence/internal/broadcast"
	"github.com/technosupport/campus-presence/internal/config"
	"github.com/technosupport/campus-presence/internal/data"
	"github.com/technosupport/campus-presence/internal/faceengine"
	"github.com/technosupport/campus-presence/internal/metrics"
	"github.com/technosupport/campus-presence/internal/presence"
	"github.com/technosupport/campus-presence/internal/stream"
	"github.com/technosupport/campus-presence/internal/vectorindex"
)

type cameraState struct {
	mu                   sync.Mutex
	frameCounter         uint64
	lastRecognitionWall  time.Time
}

// Dispatcher wires a Stream Manager's FrameCallback to recognition,
// cooldown, presence, and broadcast. One Dispatcher instance serves every
// camera; per-camera bookkeeping lives in the states map.
type Dispatcher struct {
	cfg config.RecognitionConfig

	engine   faceengine.Engine
	index    *vectorindex.Index
	cooldown *presence.CooldownTable
	guests   *presence.GuestTracker
	store    *presence.Store
	hub      *broadcast.Hub
	students *data.StudentModel
	rooms    *data.RoomModel
	metrics  *metrics.Collector

	statesMu sync.Mutex
	states   map[uuid.UUID]*cameraState

	inFlight int64 // atomic

	lastHousekeeping atomic.Int64 // unix nanos
}

func New(
	cfg config.RecognitionConfig,
	engine faceengine.Engine,
	index *vectorindex.Index,
	cooldown *presence.CooldownTable,
	guests *presence.GuestTracker,
	store *presence.Store,
	hub *broadcast.Hub,
	students *data.StudentModel,
	rooms *data.RoomModel,
	m *metrics.Collector,
) *Dispatcher {
	d := &Dispatcher{
		cfg:      cfg,
		engine:   engine,
		index:    index,
		cooldown: cooldown,
		guests:   guests,
		store:    store,
		hub:      hub,
		students: students,
		rooms:    rooms,
		metrics:  m,
		states:   make(map[uuid.UUID]*cameraState),
	}
	d.lastHousekeeping.Store(time.Now().UnixNano())
	return d
}

func (d *Dispatcher) stateFor(cameraID uuid.UUID) *cameraState {
	d.statesMu.Lock()
	defer d.statesMu.Unlock()
	s, ok := d.states[cameraID]
	if !ok {
		s = &cameraState{}
		d.states[cameraID] = s
	}
	return s
}

// OnFrame is the stream.FrameCallback handed to the Stream Manager.
func (d *Dispatcher) OnFrame(frame stream.Frame, now time.Time, roomID, cameraID uuid.UUID) {
	// 1. Backpressure: in-flight recognition tasks beyond MaxPendingTasks
	// drop the frame outright, no broadcast either, per spec.
	if atomic.LoadInt64(&d.inFlight) >= int64(d.cfg.MaxPendingTasks) {
		return
	}

	// 2. Periodic housekeeping, at most once per 60s regardless of frame rate.
	d.maybeHousekeep(now)

	// 3. Frame broadcast: best-effort, independent of the recognition gate.
	if d.hub != nil {
		d.hub.PublishBinary(cameraID.String(), frame.Data)
	}

	st := d.stateFor(cameraID)
	st.mu.Lock()
	st.frameCounter++
	frameSkip := d.cfg.FrameSkip
	if frameSkip <= 0 {
		frameSkip = 1
	}
	skip := st.frameCounter%uint64(frameSkip) != 0
	var intervalOK bool
	if !skip {
		interval := time.Duration(d.cfg.RecognitionIntervalMs) * time.Millisecond
		intervalOK = now.Sub(st.lastRecognitionWall) >= interval
		if intervalOK {
			st.lastRecognitionWall = now
		}
	}
	st.mu.Unlock()

	if skip || !intervalOK {
		return
	}

	atomic.AddInt64(&d.inFlight, 1)
	go func() {
		defer atomic.AddInt64(&d.inFlight, -1)
		d.recognize(context.Background(), frame, now, roomID, cameraID)
	}()
}

func (d *Dispatcher) maybeHousekeep(now time.Time) {
	last := d.lastHousekeeping.Load()
	if now.UnixNano()-last < int64(60*time.Second) {
		return
	}
	if !d.lastHousekeeping.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	removed := d.cooldown.Sweep()
	guestsRemoved := d.guests.Sweep()
	_ = removed
	_ = guestsRemoved
}
