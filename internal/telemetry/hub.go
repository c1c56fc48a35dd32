package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/rjboer/gohackrf/hackrf"
)

// Config represents the runtime configuration exposed by the telemetry hub.
// It is guarded by the hub's RWMutex and can be changed over HTTP.
type Config struct {
	HistoryLimit   int `json:"historyLimit"`
	PollIntervalMs int `json:"pollIntervalMs"`
}

const (
	minHistoryLimit   = 1
	maxHistoryLimit   = 10_000
	minPollIntervalMs = 10
	maxPollIntervalMs = 60_000
)

func defaultConfig() Config {
	return Config{
		HistoryLimit:   500,
		PollIntervalMs: 1000,
	}
}

func validateConfig(cfg Config, base Config) (Config, error) {
	if base.HistoryLimit == 0 || base.PollIntervalMs == 0 {
		base = defaultConfig()
	}

	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = base.HistoryLimit
	}
	if cfg.PollIntervalMs == 0 {
		cfg.PollIntervalMs = base.PollIntervalMs
	}

	if cfg.HistoryLimit < minHistoryLimit || cfg.HistoryLimit > maxHistoryLimit {
		return Config{}, fmt.Errorf("history limit must be between %d and %d", minHistoryLimit, maxHistoryLimit)
	}
	if cfg.PollIntervalMs < minPollIntervalMs || cfg.PollIntervalMs > maxPollIntervalMs {
		return Config{}, fmt.Errorf("poll interval must be between %d and %d ms", minPollIntervalMs, maxPollIntervalMs)
	}
	return cfg, nil
}

// Sample captures one observation of a streaming session.
type Sample struct {
	Timestamp   time.Time   `json:"timestamp"`
	Mode        hackrf.Mode `json:"mode"`
	Packets     uint64      `json:"packets"`
	BytesPerSec float64     `json:"bytesPerSec"`
	ElapsedSec  float64     `json:"elapsedSec"`
	QueueLen    int         `json:"queueLen"`
	PoolDropped uint64      `json:"poolDropped"`
}

// SampleFromStats converts an engine snapshot taken at now.
func SampleFromStats(st hackrf.Stats, now time.Time) Sample {
	s := Sample{
		Timestamp:   now,
		Mode:        st.Mode,
		Packets:     st.Packets,
		QueueLen:    st.QueueLen,
		PoolDropped: st.Pool.Dropped,
	}
	if !st.Start.IsZero() {
		s.ElapsedSec = st.ElapsedAt(now).Seconds()
		if s.ElapsedSec > 0 {
			s.BytesPerSec = float64(st.Packets) * float64(st.BlockSize) / s.ElapsedSec
		}
	}
	return s
}

// Summary aggregates the throughput and queue depth over the stored history.
type Summary struct {
	Count             int     `json:"count"`
	MeanBytesPerSec   float64 `json:"meanBytesPerSec"`
	StdDevBytesPerSec float64 `json:"stdDevBytesPerSec"`
	MedianBytesPerSec float64 `json:"medianBytesPerSec"`
	P95BytesPerSec    float64 `json:"p95BytesPerSec"`
	MeanQueueLen      float64 `json:"meanQueueLen"`
	MaxQueueLen       int     `json:"maxQueueLen"`
}

// Summarize computes a Summary of samples.
func Summarize(samples []Sample) Summary {
	out := Summary{Count: len(samples)}
	if len(samples) == 0 {
		return out
	}
	rates := make([]float64, len(samples))
	depths := make([]float64, len(samples))
	for i, s := range samples {
		rates[i] = s.BytesPerSec
		depths[i] = float64(s.QueueLen)
		if s.QueueLen > out.MaxQueueLen {
			out.MaxQueueLen = s.QueueLen
		}
	}
	mean, std := stat.MeanStdDev(rates, nil)
	if math.IsNaN(std) {
		std = 0
	}
	out.MeanBytesPerSec = mean
	out.StdDevBytesPerSec = std
	out.MeanQueueLen = stat.Mean(depths, nil)

	sort.Float64s(rates)
	out.MedianBytesPerSec = stat.Quantile(0.5, stat.Empirical, rates, nil)
	out.P95BytesPerSec = stat.Quantile(0.95, stat.Empirical, rates, nil)
	return out
}

// Hub collects history and fans out telemetry updates to subscribers.
type Hub struct {
	mu           sync.RWMutex
	history      []Sample
	historyLimit int
	subscribers  map[chan Sample]struct{}
	config       Config
}

// NewHub builds a telemetry hub with the provided history limit.
func NewHub(historyLimit int) *Hub {
	cfg := defaultConfig()
	if historyLimit > 0 {
		cfg.HistoryLimit = historyLimit
	}
	cfg, err := validateConfig(cfg, defaultConfig())
	if err != nil {
		cfg = defaultConfig()
	}
	return &Hub{
		historyLimit: cfg.HistoryLimit,
		subscribers:  make(map[chan Sample]struct{}),
		config:       cfg,
	}
}

// Report implements Reporter and records a new telemetry sample.
func (h *Hub) Report(sample Sample) {
	h.mu.Lock()
	h.history = append(h.history, sample)
	if len(h.history) > h.historyLimit {
		h.history = h.history[len(h.history)-h.historyLimit:]
	}
	for ch := range h.subscribers {
		select {
		case ch <- sample:
		default:
		}
	}
	h.mu.Unlock()
}

// History returns a copy of stored telemetry samples.
func (h *Hub) History() []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Sample, len(h.history))
	copy(out, h.history)
	return out
}

// ConfigSnapshot returns the latest validated configuration.
func (h *Hub) ConfigSnapshot() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// PollInterval returns the configured stats polling interval.
func (h *Hub) PollInterval() time.Duration {
	return time.Duration(h.ConfigSnapshot().PollIntervalMs) * time.Millisecond
}

// UpdateConfig validates cfg against the current settings and applies it.
func (h *Hub) UpdateConfig(cfg Config) (Config, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cfg, err := validateConfig(cfg, h.config)
	if err != nil {
		return Config{}, err
	}
	h.applyConfig(cfg)
	return cfg, nil
}

// Subscribe registers a listener for live updates.
func (h *Hub) Subscribe() (chan Sample, func()) {
	ch := make(chan Sample, 16)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	cancel := func() {
		h.mu.Lock()
		delete(h.subscribers, ch)
		close(ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) applyConfig(cfg Config) {
	h.config = cfg
	h.historyLimit = cfg.HistoryLimit
	if len(h.history) > h.historyLimit {
		h.history = h.history[len(h.history)-h.historyLimit:]
	}
}

func (h *Hub) handleHistory(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.History())
}

func (h *Hub) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Summarize(h.History()))
}

func (h *Hub) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.ConfigSnapshot())
}

func (h *Hub) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var incoming Config
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		http.Error(w, fmt.Sprintf("invalid config payload: %v", err), http.StatusBadRequest)
		return
	}

	cfg, err := h.UpdateConfig(incoming)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(cfg)
}

func writeEvent(w http.ResponseWriter, sample Sample) {
	payload, err := json.Marshal(sample)
	if err != nil {
		return
	}
	w.Write([]byte("data: "))
	w.Write(payload)
	w.Write([]byte("\n\n"))
}

func (h *Hub) handleLive(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := h.Subscribe()
	defer cancel()

	// send existing history for immediate display
	for _, sample := range h.History() {
		writeEvent(w, sample)
	}
	flusher.Flush()

	for {
		select {
		case sample, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, sample)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
