package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config tunes cardinality: per-camera gauges are opt-in since a deployment
// with hundreds of cameras can otherwise blow up the scrape payload.
type Config struct {
	PerCamera bool
}

// Collector exposes Prometheus gauges/counters fed directly by components as
// they run — there is no external service to poll, unlike a media-plane/SFU
// metrics bridge would need. The recognition dispatcher (ObserveRecognition)
// and the reaper (RecordReaperSweep) call it; SetStreamStatus,
// IncStreamRestart, SetActiveStreams, SetPresentCount and
// SetBroadcastClients have no caller, so those series stay at zero.
type Collector struct {
	config   Config
	registry *prometheus.Registry

	mu           sync.RWMutex
	lastSnapshot time.Time

	streamUp           *prometheus.GaugeVec
	streamFPS          *prometheus.GaugeVec
	streamRestarts     *prometheus.GaugeVec
	streamActiveTotal  prometheus.Gauge
	recognitionMatched prometheus.Counter
	recognitionDropped *prometheus.CounterVec
	recognitionLatency prometheus.Histogram
	presenceActive     prometheus.Gauge
	reaperSweeps       prometheus.Counter
	reaperExpired      prometheus.Counter
	broadcastClients   prometheus.Gauge
}

func NewCollector(cfg Config) *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{config: cfg, registry: reg}

	c.streamUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "campus_presence_stream_up",
		Help: "Whether a camera's ingest worker is currently connected (1) or not (0)",
	}, []string{"camera_id"})
	reg.MustRegister(c.streamUp)

	c.streamFPS = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "campus_presence_stream_fps",
		Help: "Frames per second sampled from a camera's ingest worker",
	}, []string{"camera_id"})
	reg.MustRegister(c.streamFPS)

	c.streamRestarts = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "campus_presence_stream_restarts_total",
		Help: "Reconnect count for a camera's ingest worker",
	}, []string{"camera_id"})
	reg.MustRegister(c.streamRestarts)

	c.streamActiveTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "campus_presence_streams_active",
		Help: "Total number of camera ingest workers currently running",
	})
	reg.MustRegister(c.streamActiveTotal)

	c.recognitionMatched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "campus_presence_recognition_matches_total",
		Help: "Total recognized faces dispatched to the presence store",
	})
	reg.MustRegister(c.recognitionMatched)

	c.recognitionDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_presence_recognition_dropped_total",
		Help: "Frames dropped by the recognition dispatcher, by reason",
	}, []string{"reason"})
	reg.MustRegister(c.recognitionDropped)

	c.recognitionLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "campus_presence_recognition_latency_seconds",
		Help:    "End-to-end latency from frame capture to vector index match",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(c.recognitionLatency)

	c.presenceActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "campus_presence_students_present",
		Help: "Number of students with a non-stale presence record",
	})
	reg.MustRegister(c.presenceActive)

	c.reaperSweeps = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "campus_presence_reaper_sweeps_total",
		Help: "Total reaper sweep cycles completed",
	})
	reg.MustRegister(c.reaperSweeps)

	c.reaperExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "campus_presence_reaper_expired_total",
		Help: "Total presence records expired by the reaper",
	})
	reg.MustRegister(c.reaperExpired)

	c.broadcastClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "campus_presence_broadcast_clients",
		Help: "Number of websocket clients currently subscribed to the broadcast hub",
	})
	reg.MustRegister(c.broadcastClients)

	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) SetStreamStatus(cameraID string, up bool, fps float64) {
	v := 0.0
	if up {
		v = 1.0
	}
	if c.config.PerCamera {
		c.streamUp.WithLabelValues(cameraID).Set(v)
		c.streamFPS.WithLabelValues(cameraID).Set(fps)
	}
}

func (c *Collector) IncStreamRestart(cameraID string) {
	if c.config.PerCamera {
		c.streamRestarts.WithLabelValues(cameraID).Inc()
	}
}

func (c *Collector) SetActiveStreams(n int) {
	c.streamActiveTotal.Set(float64(n))
}

func (c *Collector) ObserveRecognition(matched bool, dropReason string, latency time.Duration) {
	if matched {
		c.recognitionMatched.Inc()
	} else if dropReason != "" {
		c.recognitionDropped.WithLabelValues(dropReason).Inc()
	}
	c.recognitionLatency.Observe(latency.Seconds())
}

func (c *Collector) SetPresentCount(n int) {
	c.presenceActive.Set(float64(n))

	c.mu.Lock()
	c.lastSnapshot = time.Now()
	c.mu.Unlock()
}

func (c *Collector) RecordReaperSweep(expired int) {
	c.reaperSweeps.Inc()
	c.reaperExpired.Add(float64(expired))
}

func (c *Collector) SetBroadcastClients(n int) {
	c.broadcastClients.Set(float64(n))
}

func (c *Collector) LastSnapshot() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSnapshot
}
