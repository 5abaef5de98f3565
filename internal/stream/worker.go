package stream

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the Stream Worker's lifecycle state.
type State int32

const (
	Idle State = iota
	Connecting
	Running
	Reconnecting
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Running:
		return "running"
	case Reconnecting:
		return "reconnecting"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

const (
	tickInterval       = time.Second / 30 // ~30Hz ceiling
	defaultConnectWait = 30 * time.Second
	reconnectBackoff   = 500 * time.Millisecond
	reconnectConnectWait = 10 * time.Second
	reconnectReadWait    = 5 * time.Second
	maxReconnectAttempts = 10
	maxConsecutiveFails  = 3
	stopGrace            = 2 * time.Second
)

// FrameCallback is invoked once per pulled frame. Panics inside the
// callback are recovered and logged; the worker keeps running, matching
// the "recognition loop never lets a single frame's exception kill the
// worker" propagation policy.
type FrameCallback func(frame Frame, now time.Time, roomID, cameraID uuid.UUID)

// Worker owns one camera's decoder and frame loop.
type Worker struct {
	CameraID uuid.UUID
	RoomID   uuid.UUID
	rtspURL  string
	decoder  Decoder
	callback FrameCallback

	state atomic.Int32

	mu          sync.Mutex
	latestFrame *Frame

	fpsMu      sync.Mutex
	fpsCount   int
	fpsValue   float64
	fpsWindow  time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewWorker(cameraID, roomID uuid.UUID, rtspURL string, decoder Decoder, cb FrameCallback) *Worker {
	w := &Worker{
		CameraID: cameraID,
		RoomID:   roomID,
		rtspURL:  rtspURL,
		decoder:  decoder,
		callback: cb,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	w.state.Store(int32(Idle))
	w.fpsWindow = time.Now()
	return w
}

func (w *Worker) State() State { return State(w.state.Load()) }

func (w *Worker) setState(s State) { w.state.Store(int32(s)) }

// LatestFrame returns a defensive copy of the most recently pulled frame,
// or nil if none has been read yet.
func (w *Worker) LatestFrame() *Frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.latestFrame == nil {
		return nil
	}
	cp := *w.latestFrame
	data := make([]byte, len(cp.Data))
	copy(data, cp.Data)
	cp.Data = data
	return &cp
}

func (w *Worker) FPS() float64 {
	w.fpsMu.Lock()
	defer w.fpsMu.Unlock()
	return w.fpsValue
}

// Start opens the decoder and, once Open succeeds, transitions to Running
// and launches the read loop in a background goroutine; no frame is read
// before it returns. It returns false if the connect attempt fails within
// timeout.
func (w *Worker) Start(ctx context.Context) bool {
	w.setState(Connecting)

	connectCtx, cancel := context.WithTimeout(ctx, defaultConnectWait)
	defer cancel()

	if err := w.decoder.Open(connectCtx); err != nil {
		log.Printf("[stream:%s] connect failed: %v", w.CameraID, err)
		w.setState(Terminated)
		w.releaseDecoder()
		return false
	}

	w.setState(Running)
	go w.run(ctx)
	return true
}

// Stop signals the worker to exit and waits up to stopGrace for it to do
// so, then force-releases the decoder regardless.
func (w *Worker) Stop() {
	select {
	case <-w.stopCh:
		// already stopped
	default:
		close(w.stopCh)
	}

	select {
	case <-w.doneCh:
	case <-time.After(stopGrace):
		log.Printf("[stream:%s] stop grace period exceeded, forcing release", w.CameraID)
	}

	w.releaseDecoder()
	w.setState(Terminated)

	w.mu.Lock()
	w.latestFrame = nil
	w.mu.Unlock()
}

func (w *Worker) releaseDecoder() {
	if err := w.decoder.Close(); err != nil {
		log.Printf("[stream:%s] decoder close error: %v", w.CameraID, err)
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)
	defer w.releaseDecoderOnPanic()

	consecutiveFails := 0
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		readCtx, cancel := context.WithTimeout(ctx, reconnectReadWait)
		frame, err := w.decoder.ReadFrame(readCtx)
		cancel()

		if err != nil {
			consecutiveFails++
			if consecutiveFails >= maxConsecutiveFails {
				if !w.reconnect(ctx) {
					return
				}
				consecutiveFails = 0
			}
			continue
		}

		consecutiveFails = 0
		now := time.Now()

		w.mu.Lock()
		w.latestFrame = &frame
		w.mu.Unlock()

		w.bumpFPS(now)
		w.invokeCallback(frame, now)
	}
}

func (w *Worker) releaseDecoderOnPanic() {
	if r := recover(); r != nil {
		log.Printf("[stream:%s] worker panic: %v", w.CameraID, r)
		w.releaseDecoder()
		w.setState(Terminated)
	}
}

func (w *Worker) invokeCallback(frame Frame, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[stream:%s] frame callback panic: %v", w.CameraID, r)
		}
	}()
	if w.callback != nil {
		w.callback(frame, now, w.RoomID, w.CameraID)
	}
}

func (w *Worker) bumpFPS(now time.Time) {
	w.fpsMu.Lock()
	defer w.fpsMu.Unlock()
	w.fpsCount++
	if elapsed := now.Sub(w.fpsWindow); elapsed >= time.Second {
		w.fpsValue = float64(w.fpsCount) / elapsed.Seconds()
		w.fpsCount = 0
		w.fpsWindow = now
	}
}

// reconnect tears down and reopens the decoder up to maxReconnectAttempts
// times. Returns false if the limit is exceeded (worker should terminate).
func (w *Worker) reconnect(ctx context.Context) bool {
	w.setState(Reconnecting)
	w.releaseDecoder()

	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		select {
		case <-w.stopCh:
			return false
		case <-ctx.Done():
			return false
		case <-time.After(reconnectBackoff):
		}

		connectCtx, cancel := context.WithTimeout(ctx, reconnectConnectWait)
		err := w.decoder.Open(connectCtx)
		cancel()

		if err == nil {
			w.setState(Running)
			return true
		}
		log.Printf("[stream:%s] reconnect attempt %d/%d failed: %v", w.CameraID, attempt, maxReconnectAttempts, err)
	}

	log.Printf("[stream:%s] exceeded reconnect attempts, terminating", w.CameraID)
	w.setState(Terminated)
	return false
}
