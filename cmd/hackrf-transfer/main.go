package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/google/gousb"

	"github.com/rjboer/gohackrf/hackrf"
	"github.com/rjboer/gohackrf/internal/logging"
	"github.com/rjboer/gohackrf/internal/mdns"
	"github.com/rjboer/gohackrf/internal/telemetry"
)

func main() {
	configPath := envString(os.LookupEnv, "HACKRF_CONFIG", "hackrf.json")
	defaults, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	cfg, err := parseConfig(os.Args[1:], os.LookupEnv, defaults)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}
	if err := validateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid arguments: %v\n", err)
		os.Exit(2)
	}
	logger, err := logging.FromStrings(cfg.logLevel, cfg.logFormat, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	logging.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if cfg.duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, cfg.duration)
		defer stop()
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("hackrf-transfer failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg cliConfig, logger logging.Logger) error {
	if cfg.browse {
		return browse(ctx, cfg.browseTimeout)
	}

	usbCtx := gousb.NewContext()
	defer usbCtx.Close()
	dev, err := openFirst(usbCtx)
	if err != nil {
		return err
	}
	h, err := hackrf.NewUSBHandle(dev)
	if err != nil {
		dev.Close()
		return err
	}
	logger.Info("opened device", logging.Field{Key: "usb", Value: h.String()})

	d, err := hackrf.New(h, append(cfg.deviceOptions(), hackrf.WithLogger(logger))...)
	if err != nil {
		h.Close()
		return err
	}
	defer d.Close()

	info, err := readBoardInfo(d)
	if err != nil {
		return err
	}
	if cfg.info {
		printBoardInfo(os.Stdout, info)
		if cfg.rxPath == "" && cfg.txPath == "" {
			return nil
		}
	}

	if err := configure(d, cfg); err != nil {
		return err
	}

	if cfg.webAddr != "" {
		shutdown, err := startTelemetry(ctx, d, cfg, info, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	start := time.Now()
	var n int
	if cfg.rxPath != "" {
		n, err = receive(ctx, d, cfg)
	} else {
		n, err = transmit(ctx, d, cfg)
	}
	elapsed := time.Since(start)
	logger.Info("transfer finished",
		logging.Field{Key: "blocks", Value: n},
		logging.Field{Key: "bytes", Value: n * d.BlockSize()},
		logging.Field{Key: "elapsed", Value: elapsed.Round(time.Millisecond)},
	)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func receive(ctx context.Context, d *hackrf.Device, cfg cliConfig) (int, error) {
	f, err := os.Create(cfg.rxPath)
	if err != nil {
		return 0, err
	}
	n, err := receiveToFile(ctx, d, f, cfg.numBlocks)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return n, err
}

func transmit(ctx context.Context, d *hackrf.Device, cfg cliConfig) (int, error) {
	f, err := os.Open(cfg.txPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return transmitFromFile(ctx, d, f, cfg.numBlocks)
}

// startTelemetry serves the web telemetry, polls the device into it and, when
// asked, advertises the endpoint over mDNS.
func startTelemetry(ctx context.Context, d *hackrf.Device, cfg cliConfig, info boardInfo, logger logging.Logger) (func(), error) {
	hub := telemetry.NewHub(cfg.historyLimit)
	web := telemetry.NewWebServer(cfg.webAddr, hub, logger)
	ln, err := web.Listen()
	if err != nil {
		return nil, fmt.Errorf("web telemetry: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	go web.Serve(ctx, ln)
	reporter := telemetry.MultiReporter{hub}
	if cfg.logLevel == "debug" {
		reporter = append(reporter, telemetry.NewStdoutReporter(logger))
	}
	go telemetry.Watch(ctx, d, reporter, hub.PollInterval)

	var adv *mdns.Advertisement
	if cfg.advertise {
		port := 0
		if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
			port = tcp.Port
		}
		adv, err = mdns.Advertise("hackrf "+info.Serial, port, append(
			mdns.TXTRecords(info.Board, info.Serial, info.Firmware),
			"mode="+modeName(cfg),
			"port="+strconv.Itoa(port),
		))
		if err != nil {
			cancel()
			return nil, err
		}
		logger.Info("advertising telemetry", logging.Field{Key: "service", Value: mdns.ServiceType}, logging.Field{Key: "port", Value: port})
	}
	return func() {
		adv.Shutdown()
		cancel()
	}, nil
}

func modeName(cfg cliConfig) string {
	if cfg.txPath != "" {
		return hackrf.ModeTransmit.String()
	}
	return hackrf.ModeReceive.String()
}

func browse(ctx context.Context, timeout time.Duration) error {
	hosts, err := mdns.Discover(ctx, timeout)
	if err != nil {
		return err
	}
	if len(hosts) == 0 {
		fmt.Println("No instances found")
		return nil
	}
	for _, h := range hosts {
		fmt.Printf("%s\n  host: %s port: %d\n", h.Instance, h.Hostname, h.Port)
		for _, ip := range h.Addresses {
			fmt.Printf("  addr: %s\n", ip)
		}
		if b := h.TXT["board"]; b != "" {
			fmt.Printf("  board: %s serial: %s firmware: %s mode: %s\n", b, h.TXT["serial"], h.TXT["firmware"], h.TXT["mode"])
		}
	}
	return nil
}
