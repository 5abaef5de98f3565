package media

import (
	"context"
	"errors"

	"github.com/technosupport/campus-presence/internal/stream"
)

// ErrDecodeOutOfScope is returned by ReadFrame: actual RTSP decoding
// (demuxing, video decode, JPEG re-encode) is the out-of-scope external
// decoder per spec; this type exercises the connect/health-check half of
// the Decoder contract so the rest of the Stream Worker state machine is
// fully testable without a real decode pipeline.
var ErrDecodeOutOfScope = errors.New("media: frame decoding requires an external decoder backend")

// RTSPConnectDecoder implements stream.Decoder using only a connect-level
// RTSP OPTIONS probe. It is the default decoder wired by cmd/server until
// a real ffmpeg/gortsplib-backed Decoder is substituted.
type RTSPConnectDecoder struct {
	url string
}

func NewRTSPConnectDecoder(rtspURL string) stream.Decoder {
	return &RTSPConnectDecoder{url: rtspURL}
}

func (d *RTSPConnectDecoder) Open(ctx context.Context) error {
	return ProbeRTSP(ctx, d.url)
}

func (d *RTSPConnectDecoder) ReadFrame(ctx context.Context) (stream.Frame, error) {
	return stream.Frame{}, ErrDecodeOutOfScope
}

func (d *RTSPConnectDecoder) Close() error { return nil }
