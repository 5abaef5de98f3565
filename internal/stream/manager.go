package stream

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Status is an observational, value-copied snapshot of a running worker.
type Status struct {
	CameraID uuid.UUID
	RoomID   uuid.UUID
	State    State
	FPS      float64
}

// Manager is the registry of active Stream Workers, camera_id -> Worker,
// bounded by MaxSimultaneousStreams. Concurrent decoder opens are bounded
// separately by a semaphore-style buffered channel, the same
// bounded-channel-over-worker-pool shape internal/nvr/monitor.go uses to
// cap how many RTSP dials happen at once.
type Manager struct {
	mu      sync.Mutex
	workers map[uuid.UUID]*Worker

	maxStreams int
	connectSem chan struct{}

	decoderFactory DecoderFactory
	callback       FrameCallback
}

func NewManager(maxStreams int, maxConcurrentConnects int, decoderFactory DecoderFactory, cb FrameCallback) *Manager {
	if maxStreams <= 0 {
		maxStreams = 20
	}
	if maxConcurrentConnects <= 0 {
		maxConcurrentConnects = 10
	}
	return &Manager{
		workers:        make(map[uuid.UUID]*Worker),
		maxStreams:     maxStreams,
		connectSem:     make(chan struct{}, maxConcurrentConnects),
		decoderFactory: decoderFactory,
		callback:       cb,
	}
}

// StartCamera is idempotent (returns true immediately if already running)
// and rejects new starts once the active count reaches MaxSimultaneousStreams.
func (m *Manager) StartCamera(ctx context.Context, cameraID, roomID uuid.UUID, rtspURL string) bool {
	m.mu.Lock()
	if _, ok := m.workers[cameraID]; ok {
		m.mu.Unlock()
		return true
	}
	if len(m.workers) >= m.maxStreams {
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()

	m.connectSem <- struct{}{}
	defer func() { <-m.connectSem }()

	decoder := m.decoderFactory(rtspURL)
	worker := NewWorker(cameraID, roomID, rtspURL, decoder, m.callback)

	if !worker.Start(ctx) {
		return false
	}

	m.mu.Lock()
	full := len(m.workers) >= m.maxStreams
	if !full {
		m.workers[cameraID] = worker
	}
	m.mu.Unlock()

	if full {
		worker.Stop()
		return false
	}
	return true
}

func (m *Manager) StopCamera(cameraID uuid.UUID) {
	m.mu.Lock()
	w, ok := m.workers[cameraID]
	if ok {
		delete(m.workers, cameraID)
	}
	m.mu.Unlock()

	if ok {
		w.Stop()
	}
}

// StopRoomCameras snapshots the subset of workers for a room, then stops
// each, and returns the count stopped.
func (m *Manager) StopRoomCameras(roomID uuid.UUID) int {
	m.mu.Lock()
	var toStop []*Worker
	for id, w := range m.workers {
		if w.RoomID == roomID {
			toStop = append(toStop, w)
			delete(m.workers, id)
		}
	}
	m.mu.Unlock()

	for _, w := range toStop {
		w.Stop()
	}
	return len(toStop)
}

func (m *Manager) GetCameraStatus(cameraID uuid.UUID) (Status, bool) {
	m.mu.Lock()
	w, ok := m.workers[cameraID]
	m.mu.Unlock()
	if !ok {
		return Status{}, false
	}
	return Status{CameraID: w.CameraID, RoomID: w.RoomID, State: w.State(), FPS: w.FPS()}, true
}

// GetLatestFrame returns the most recent JPEG frame pulled for cameraID,
// for on-demand snapshot/live-preview endpoints. ok is false if the
// camera has no running worker or no frame has arrived yet.
func (m *Manager) GetLatestFrame(cameraID uuid.UUID) (Frame, bool) {
	m.mu.Lock()
	w, ok := m.workers[cameraID]
	m.mu.Unlock()
	if !ok {
		return Frame{}, false
	}
	f := w.LatestFrame()
	if f == nil {
		return Frame{}, false
	}
	return *f, true
}

func (m *Manager) GetAllStatuses() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Status, 0, len(m.workers))
	for _, w := range m.workers {
		out = append(out, Status{CameraID: w.CameraID, RoomID: w.RoomID, State: w.State(), FPS: w.FPS()})
	}
	return out
}

func (m *Manager) GetRoomCameras(roomID uuid.UUID) []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Status
	for _, w := range m.workers {
		if w.RoomID == roomID {
			out = append(out, Status{CameraID: w.CameraID, RoomID: w.RoomID, State: w.State(), FPS: w.FPS()})
		}
	}
	return out
}

func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers)
}

// StopAll stops every running worker, used at server shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	workers := make([]*Worker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.workers = make(map[uuid.UUID]*Worker)
	m.mu.Unlock()

	for _, w := range workers {
		w.Stop()
	}
}
