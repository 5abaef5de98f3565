package stream

import (
	"context"
	"time"
)

// Frame is one decoded video frame handed to the Recognition Dispatcher.
// JPEG bytes are used as the interchange format throughout this codebase
// (broadcast, recognition, check-in), so the decoder boundary produces
// JPEG directly rather than raw pixel buffers.
type Frame struct {
	Data       []byte
	CapturedAt time.Time
}

// Decoder is the Stream Worker's boundary to actual RTSP decoding. Frame
// decode (RTSP -> raw frames -> JPEG) is an out-of-scope external
// concern; any implementation meeting this contract — a real
// ffmpeg/gortsplib-backed one included — can be swapped in without
// touching worker logic, mirroring how internal/nvr/adapters isolates
// vendor-specific protocol handling behind a single interface.
type Decoder interface {
	Open(ctx context.Context) error
	ReadFrame(ctx context.Context) (Frame, error)
	Close() error
}

// DecoderFactory constructs a Decoder for a given RTSP URL. The Stream
// Manager is handed a factory rather than a concrete type so tests can
// substitute a fake decoder.
type DecoderFactory func(rtspURL string) Decoder
