// Package faceengine is the boundary to the external face
// detector/embedder. Any backend meeting the contract (unit vectors in
// R^512, bbox as [x1,y1,x2,y2], detection score in [0,1]) is acceptable;
// this package ships a deterministic stub used whenever a real model
// backend isn't present, grounded on cmd/ai-service/inference.go's
// model-pluggability pattern (a modelAvailable flag probed once at
// startup, with everything else exercisable without the real dependency).
package faceengine

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"math"
	"os"
	"path/filepath"
)

// BBox is [x1,y1,x2,y2] in pixel coordinates.
type BBox [4]float64

func (b BBox) Width() float64  { return b[2] - b[0] }
func (b BBox) Height() float64 { return b[3] - b[1] }

// Face is one detected face with its embedding, as returned by DetectAndEmbed.
type Face struct {
	Embedding []float32
	BBox      BBox
	Score     float64 // detection confidence, [0,1]
}

// Engine is the external detector/embedder capability.
type Engine interface {
	// DetectAndEmbed returns every detected face in frame with its raw
	// (not yet filtered by size/score) bbox, detection score, and a unit
	// embedding vector.
	DetectAndEmbed(frame []byte) ([]Face, error)
	// EmbedSingle embeds the single most prominent face in frame, or
	// returns ok=false if no face is found (used by the check-in path).
	EmbedSingle(frame []byte) (vec []float32, ok bool, err error)
	// Dimension reports the embedding size this engine produces.
	Dimension() int
}

// ErrNoRealBackend is returned by InitEngine when a real model backend was
// required but could not be located.
var ErrNoRealBackend = errors.New("faceengine: no real model backend available")

// InitEngine probes modelDir for a real backend. Since no CGO-capable face
// model is part of this pack, the probe always reports "not found" and
// this constructs the deterministic Stub engine — exactly the path the
// teacher's InitDetector takes when onnxruntime.dll/the model file are
// absent. requireGPU=true with no real backend is a fatal startup
// condition per spec, signaled by returning ErrNoRealBackend so main can
// log.Fatal.
func InitEngine(modelDir string, requireGPU bool, dimension int) (Engine, error) {
	hasBackend := probeRealBackend(modelDir)

	if !hasBackend {
		if requireGPU {
			return nil, ErrNoRealBackend
		}
		log.Printf("[faceengine] no real backend found in %s, using deterministic stub", modelDir)
		return NewStub(dimension), nil
	}

	// A real backend would be constructed here; none ships in this repo.
	return NewStub(dimension), nil
}

func probeRealBackend(modelDir string) bool {
	candidates := []string{
		filepath.Join(modelDir, "arcface.onnx"),
		filepath.Join(modelDir, "facenet.onnx"),
		filepath.Join(modelDir, "retinaface.onnx"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			log.Printf("[faceengine] found model file at %s", c)
			return true
		}
	}
	return false
}

// Stub is a deterministic backend: it decodes the frame, derives a
// reproducible "embedding" from a hash of pixel content (so identical or
// near-identical frames produce identical vectors, matching the spec's
// testable properties around exact-match search), and reports one
// synthetic face covering the center of the image. It never requires a
// GPU or a real model file.
type Stub struct {
	dimension int
}

func NewStub(dimension int) *Stub {
	if dimension <= 0 {
		dimension = 512
	}
	return &Stub{dimension: dimension}
}

func (s *Stub) Dimension() int { return s.dimension }

func (s *Stub) DetectAndEmbed(frame []byte) ([]Face, error) {
	img, bounds, err := decode(frame)
	if err != nil {
		return nil, err
	}
	_ = img

	vec := s.embed(frame)
	w, h := bounds.Dx(), bounds.Dy()
	bb := centeredBBox(w, h)

	return []Face{{
		Embedding: vec,
		BBox:      bb,
		Score:     0.9,
	}}, nil
}

func (s *Stub) EmbedSingle(frame []byte) ([]float32, bool, error) {
	_, _, err := decode(frame)
	if err != nil {
		return nil, false, err
	}
	return s.embed(frame), true, nil
}

func decode(frame []byte) (image.Image, image.Rectangle, error) {
	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("faceengine: decode frame: %w", err)
	}
	return img, img.Bounds(), nil
}

func centeredBBox(w, h int) BBox {
	cx, cy := float64(w)/2, float64(h)/2
	halfW, halfH := float64(w)/4, float64(h)/4
	return BBox{cx - halfW, cy - halfH, cx + halfW, cy + halfH}
}

// embed derives a unit vector deterministically from the frame's bytes.
// This is a stand-in for a real embedding model: it is reproducible
// (same frame -> same vector) and spreads across the unit sphere, which is
// enough to exercise the Vector Index's add/search contract end-to-end
// without a GPU.
func (s *Stub) embed(frame []byte) []float32 {
	digest := sha256.Sum256(frame)

	seed := make([]byte, 8)
	copy(seed, digest[:8])
	state := binary.LittleEndian.Uint64(seed)

	vec := make([]float32, s.dimension)
	var sumSquares float64
	for i := range vec {
		state = xorshift64(state)
		v := (float64(state%2000001) / 1000000.0) - 1.0 // uniform in [-1,1]
		vec[i] = float32(v)
		sumSquares += v * v
	}

	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		norm = 1
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func xorshift64(x uint64) uint64 {
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	return x
}
