// Package config loads the YAML configuration file used by cmd/server,
// layering environment-variable overrides for secrets the way the teacher's
// cmd/server/main.go reads config/default.yaml plus os.Getenv.
package config

import (
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// RecognitionConfig holds the tunables from spec §6. Defaults here match
// the spec's documented defaults and are applied whenever the YAML file
// omits a field (zero-value detection, same pattern as the teacher's
// rate-limit config defaults).
type RecognitionConfig struct {
	ConfidenceThreshold    float64 `yaml:"confidence_threshold"`
	EmbeddingDimension     int     `yaml:"embedding_dimension"`
	MaxFacesPerFrame       int     `yaml:"max_faces_per_frame"`
	RecognitionIntervalMs  int     `yaml:"recognition_interval_ms"`
	CooldownSeconds        int     `yaml:"cooldown_seconds"`
	MinFaceSize            int     `yaml:"min_face_size"`
	FrameSkip              int     `yaml:"frame_skip"`
	PresenceTimeoutSeconds int     `yaml:"presence_timeout_seconds"`
	PresenceCleanupInterval int    `yaml:"presence_cleanup_interval"`
	MaxSimultaneousStreams int     `yaml:"max_simultaneous_streams"`
	MaxCamerasPerRoom      int     `yaml:"max_cameras_per_room"`
	MaxPendingTasks        int     `yaml:"max_pending_tasks"`
}

func (r *RecognitionConfig) applyDefaults() {
	if r.ConfidenceThreshold == 0 {
		r.ConfidenceThreshold = 0.60
	}
	if r.EmbeddingDimension == 0 {
		r.EmbeddingDimension = 512
	}
	if r.MaxFacesPerFrame == 0 {
		r.MaxFacesPerFrame = 10
	}
	if r.RecognitionIntervalMs == 0 {
		r.RecognitionIntervalMs = 300
	}
	if r.CooldownSeconds == 0 {
		r.CooldownSeconds = 10
	}
	if r.MinFaceSize == 0 {
		r.MinFaceSize = 60
	}
	if r.FrameSkip == 0 {
		r.FrameSkip = 2
	}
	if r.PresenceTimeoutSeconds == 0 {
		r.PresenceTimeoutSeconds = 30
	}
	if r.PresenceCleanupInterval == 0 {
		r.PresenceCleanupInterval = 10
	}
	if r.MaxSimultaneousStreams == 0 {
		r.MaxSimultaneousStreams = 20
	}
	if r.MaxCamerasPerRoom == 0 {
		r.MaxCamerasPerRoom = 10
	}
	if r.MaxPendingTasks == 0 {
		r.MaxPendingTasks = 50
	}
}

// FaceEngineConfig controls the external detector/embedder boundary.
type FaceEngineConfig struct {
	ModelDir    string `yaml:"model_dir"`
	RequireGPU  bool   `yaml:"require_gpu"`
}

// StorageConfig points at the Vector Index and image persistence roots.
type StorageConfig struct {
	IndexDir      string `yaml:"index_dir"`
	ImagesDir     string `yaml:"images_dir"`
}

// Config is the root document parsed from config/default.yaml.
type Config struct {
	Recognition RecognitionConfig `yaml:"recognition"`
	FaceEngine  FaceEngineConfig  `yaml:"face_engine"`
	Storage     StorageConfig     `yaml:"storage"`

	DB struct {
		Host string `yaml:"host"`
		User string `yaml:"user"`
		Name string `yaml:"name"`
	} `yaml:"db"`

	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`

	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`
}

func (c *Config) applyDefaults() {
	c.Recognition.applyDefaults()
	if c.Storage.IndexDir == "" {
		c.Storage.IndexDir = "faiss_index"
	}
	if c.Storage.ImagesDir == "" {
		c.Storage.ImagesDir = "images"
	}
}

// applyEnvOverrides layers secrets and host-specific values from the
// environment over whatever the YAML file set, the same override sites
// cmd/server/main.go reads directly with os.Getenv.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DB_HOST"); v != "" {
		c.DB.Host = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.DB.User = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.DB.Name = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
}

// Load reads a YAML config file and applies env-var and built-in defaults.
// A missing file is not fatal: defaults plus env overrides are enough to
// boot with conservative settings, matching the teacher's tolerance for a
// missing config/default.yaml during early bring-up.
func Load(path string) (*Config, error) {
	var c Config

	data, err := os.ReadFile(path)
	if err == nil {
		if uerr := yaml.Unmarshal(data, &c); uerr != nil {
			return nil, uerr
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	c.applyDefaults()
	c.applyEnvOverrides()
	return &c, nil
}

// Store holds the live, hot-reloadable RecognitionConfig so that callers
// can read the current tunables without restarting the process. Other
// Config fields (DB, Redis, NATS, storage paths) are read once at startup
// and are not hot-reloaded since they require reconnecting dependencies.
type Store struct {
	mu   sync.RWMutex
	path string
	cur  RecognitionConfig
}

func NewStore(path string, initial RecognitionConfig) *Store {
	return &Store{path: path, cur: initial}
}

func (s *Store) Get() RecognitionConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Reload re-reads the file at s.path and swaps in the new Recognition
// tunables. Parse failures are returned to the caller and leave the
// previous tunables in place (fail closed, matching the Vector Index's
// load-failure policy elsewhere in this codebase).
func (s *Store) Reload() error {
	cfg, err := Load(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cur = cfg.Recognition
	s.mu.Unlock()
	return nil
}
