package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rjboer/gohackrf/hackrf"
)

type cliConfig struct {
	info          bool
	browse        bool
	browseTimeout time.Duration
	rxPath        string
	txPath        string
	numBlocks     int
	duration      time.Duration

	freqHz     int64
	sampleRate int
	bandwidth  int
	lnaGain    int
	vgaGain    int
	txGain     int
	amp        bool
	antenna    bool

	blockSize   int
	inFlight    int
	queueMiB    int
	txTimeoutMs int

	webAddr      string
	historyLimit int
	advertise    bool
	logLevel     string
	logFormat    string
}

// fileConfig holds the defaults read from the optional JSON file. The file is
// only read; flags and HACKRF_* variables override it for a single run.
type fileConfig struct {
	FrequencyHz  int64  `json:"frequency_hz"`
	SampleRate   int    `json:"sample_rate"`
	Bandwidth    int    `json:"baseband_bandwidth"`
	LNAGain      int    `json:"lna_gain"`
	VGAGain      int    `json:"vga_gain"`
	TxGain       int    `json:"tx_gain"`
	Amp          bool   `json:"amp"`
	Antenna      bool   `json:"antenna_power"`
	BlockSize    int    `json:"block_size"`
	InFlight     int    `json:"in_flight"`
	QueueMiB     int    `json:"queue_mib"`
	TxTimeoutMs  int    `json:"tx_timeout_ms"`
	WebAddr      string `json:"web_addr"`
	HistoryLimit int    `json:"history_limit"`
	Advertise    bool   `json:"advertise"`
	LogLevel     string `json:"log_level"`
	LogFormat    string `json:"log_format"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		FrequencyHz:  915_000_000,
		SampleRate:   10_000_000,
		LNAGain:      16,
		VGAGain:      20,
		TxGain:       0,
		BlockSize:    hackrf.DefaultBlockSize,
		InFlight:     hackrf.DefaultInFlight,
		QueueMiB:     hackrf.DefaultQueueBytes >> 20,
		TxTimeoutMs:  hackrf.DefaultTransmitTimeout,
		HistoryLimit: 500,
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// loadConfig overlays the JSON file at path on the built-in defaults. A
// missing file is not an error.
func loadConfig(path string) (fileConfig, error) {
	cfg := defaultFileConfig()
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return fileConfig{}, err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return fileConfig{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, nil
}

func parseConfig(args []string, lookup func(string) (string, bool), defaults fileConfig) (cliConfig, error) {
	cfg := cliConfig{}
	fs := flag.NewFlagSet("hackrf-transfer", flag.ContinueOnError)
	fs.BoolVar(&cfg.info, "info", false, "Print board ID, firmware version and serial number")
	fs.BoolVar(&cfg.browse, "browse", false, "List hackrf-transfer instances advertised on the network")
	fs.DurationVar(&cfg.browseTimeout, "browse-timeout", envDuration(lookup, "HACKRF_BROWSE_TIMEOUT", 3*time.Second), "How long -browse listens")
	fs.StringVar(&cfg.rxPath, "r", "", "Receive samples into this file")
	fs.StringVar(&cfg.txPath, "t", "", "Transmit samples from this file")
	fs.IntVar(&cfg.numBlocks, "n", envInt(lookup, "HACKRF_NUM_BLOCKS", 0), "Number of blocks to transfer (0 = unlimited)")
	fs.DurationVar(&cfg.duration, "duration", envDuration(lookup, "HACKRF_DURATION", 0), "Stop after this long (0 = unlimited)")

	fs.Int64Var(&cfg.freqHz, "f", envInt64(lookup, "HACKRF_FREQUENCY", defaults.FrequencyHz), "Center frequency in Hz")
	fs.IntVar(&cfg.sampleRate, "s", envInt(lookup, "HACKRF_SAMPLE_RATE", defaults.SampleRate), "Sample rate in Hz")
	fs.IntVar(&cfg.bandwidth, "b", envInt(lookup, "HACKRF_BASEBAND_BANDWIDTH", defaults.Bandwidth), "Baseband filter bandwidth in Hz (0 = match sample rate)")
	fs.IntVar(&cfg.lnaGain, "l", envInt(lookup, "HACKRF_LNA_GAIN", defaults.LNAGain), "RX LNA gain, 0-40 dB in 8 dB steps")
	fs.IntVar(&cfg.vgaGain, "g", envInt(lookup, "HACKRF_VGA_GAIN", defaults.VGAGain), "RX VGA gain, 0-62 dB in 2 dB steps")
	fs.IntVar(&cfg.txGain, "x", envInt(lookup, "HACKRF_TX_GAIN", defaults.TxGain), "TX VGA gain, 0-47 dB")
	fs.BoolVar(&cfg.amp, "a", envBool(lookup, "HACKRF_AMP", defaults.Amp), "Enable the RF amplifier")
	fs.BoolVar(&cfg.antenna, "p", envBool(lookup, "HACKRF_ANTENNA_POWER", defaults.Antenna), "Enable antenna port power")

	fs.IntVar(&cfg.blockSize, "block-size", envInt(lookup, "HACKRF_BLOCK_SIZE", defaults.BlockSize), "Bulk transfer block size in bytes")
	fs.IntVar(&cfg.inFlight, "in-flight", envInt(lookup, "HACKRF_IN_FLIGHT", defaults.InFlight), "Bulk transfers kept outstanding")
	fs.IntVar(&cfg.queueMiB, "queue-mib", envInt(lookup, "HACKRF_QUEUE_MIB", defaults.QueueMiB), "Transfer queue size in MiB")
	fs.IntVar(&cfg.txTimeoutMs, "tx-timeout-ms", envInt(lookup, "HACKRF_TX_TIMEOUT_MS", defaults.TxTimeoutMs), "Transmit starvation timeout in milliseconds")

	fs.StringVar(&cfg.webAddr, "web-addr", envString(lookup, "HACKRF_WEB_ADDR", defaults.WebAddr), "Optional web telemetry listen address (e.g. :8080)")
	fs.IntVar(&cfg.historyLimit, "history-limit", envInt(lookup, "HACKRF_HISTORY_LIMIT", defaults.HistoryLimit), "Maximum samples to keep in telemetry history")
	fs.BoolVar(&cfg.advertise, "advertise", envBool(lookup, "HACKRF_ADVERTISE", defaults.Advertise), "Advertise the web telemetry endpoint over mDNS")
	fs.StringVar(&cfg.logLevel, "log-level", envString(lookup, "HACKRF_LOG_LEVEL", defaults.LogLevel), "Log level (debug|info|warn|error)")
	fs.StringVar(&cfg.logFormat, "log-format", envString(lookup, "HACKRF_LOG_FORMAT", defaults.LogFormat), "Log format (text|json)")

	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}
	return cfg, nil
}

func validateConfig(cfg cliConfig) error {
	if cfg.rxPath != "" && cfg.txPath != "" {
		return errors.New("-r and -t are mutually exclusive")
	}
	if !cfg.info && !cfg.browse && cfg.rxPath == "" && cfg.txPath == "" {
		return errors.New("nothing to do: use -info, -browse, -r or -t")
	}
	if cfg.numBlocks < 0 {
		return fmt.Errorf("block count %d must not be negative", cfg.numBlocks)
	}
	if cfg.sampleRate <= 0 {
		return fmt.Errorf("sample rate %d must be positive", cfg.sampleRate)
	}
	if cfg.freqHz <= 0 {
		return fmt.Errorf("frequency %d must be positive", cfg.freqHz)
	}
	if cfg.queueMiB <= 0 {
		return fmt.Errorf("queue size %d MiB must be positive", cfg.queueMiB)
	}
	if cfg.advertise && cfg.webAddr == "" {
		return errors.New("-advertise needs -web-addr")
	}
	return nil
}

func (c cliConfig) deviceOptions() []hackrf.Option {
	return []hackrf.Option{
		hackrf.WithBlockSize(c.blockSize),
		hackrf.WithInFlight(c.inFlight),
		hackrf.WithQueueBytes(c.queueMiB << 20),
		hackrf.WithTransmitTimeout(time.Duration(c.txTimeoutMs) * time.Millisecond),
	}
}

func envInt(lookup func(string) (string, bool), key string, def int) int {
	if val, ok := lookup(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func envInt64(lookup func(string) (string, bool), key string, def int64) int64 {
	if val, ok := lookup(key); ok {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func envBool(lookup func(string) (string, bool), key string, def bool) bool {
	if val, ok := lookup(key); ok {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return def
}

func envDuration(lookup func(string) (string, bool), key string, def time.Duration) time.Duration {
	if val, ok := lookup(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return def
}

func envString(lookup func(string) (string, bool), key, def string) string {
	if val, ok := lookup(key); ok {
		return val
	}
	return def
}
