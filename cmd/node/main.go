// Package main implements the distsort worker node, which sorts partitions
// sent by the coordinator over the binary sort protocol.
//
// The node is a Receptor in the distsort batch job, responsible for:
//   - Accepting coordinator connections on a TCP port
//   - Sorting every SortRequest payload with all local cores
//   - Answering each request with a SortResponse on the same connection
//   - Closing a connection on ShutdownNotice, end of stream or a bad frame
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│                Node                      │
//	├─────────────────────────────────────────┤
//	│  Sort protocol (NODE_LISTEN):           │
//	│    0x01 SortRequest   -> 0x02 Response  │
//	│    0x03 ShutdownNotice -> close conn    │
//	├─────────────────────────────────────────┤
//	│  Admin HTTP (NODE_ADMIN_ADDR):          │
//	│    /health       - Health check         │
//	│    /metrics      - Prometheus metrics   │
//	│    /info         - Worker stats         │
//	└─────────────────────────────────────────┘
//
// Configuration:
//   - NODE_LISTEN: Sort protocol listen address (default: ":12345")
//   - NODE_ADMIN_ADDR: Admin HTTP listen address (default: disabled)
//   - NODE_PARALLELISM: Chunk sorts per request (default: GOMAXPROCS)
//   - NODE_MAX_PAYLOAD: Largest request in elements (default: 30000000)
//   - LOG_LEVEL, LOG_FORMAT: Logger setup (default: info, text)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP gRPC trace collector (default: disabled)
//
// Example usage:
//
//	NODE_LISTEN=:12345 NODE_ADMIN_ADDR=:9101 ./node
//
// A ShutdownNotice closes only the connection it arrives on. The process
// runs until SIGINT or SIGTERM.
package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dreamware/distsort/internal/admin"
	"github.com/dreamware/distsort/internal/logging"
	"github.com/dreamware/distsort/internal/metrics"
	"github.com/dreamware/distsort/internal/tracer"
	"github.com/dreamware/distsort/internal/worker"
)

// logFatal is a variable to allow mocking log.Fatal in tests.
var logFatal = log.Fatalf

// config is the node configuration read from the environment.
type config struct {
	Listen       string // Sort protocol address
	AdminAddr    string // Admin HTTP address, empty to disable
	OTLPEndpoint string // Trace collector, empty to disable
	LogLevel     string
	LogFormat    string
	Parallelism  int    // <= 0 means GOMAXPROCS
	MaxPayload   uint32 // Largest accepted request payload
}

// main reads the environment, starts the worker and blocks until a signal.
//
// Exit codes:
//   - 0: Normal shutdown via signal
//   - 1: Bad configuration or the listener could not be opened
func main() {
	cfg, err := configFromEnv()
	if err != nil {
		logFatal("node: %v", err)
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logFatal("node: %v", err)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		logFatal("node: listen %s: %v", cfg.Listen, err)
	}
	if err := run(ctx, ln, cfg, logger); err != nil {
		logFatal("node: %v", err)
	}
	logger.Info("node: stopped")
}

// configFromEnv reads the NODE_* and shared variables.
func configFromEnv() (config, error) {
	cfg := config{
		Listen:       getenv("NODE_LISTEN", ":12345"),
		AdminAddr:    getenv("NODE_ADMIN_ADDR", ""),
		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		LogFormat:    getenv("LOG_FORMAT", "text"),
		MaxPayload:   worker.DefaultMaxPayload,
	}
	if v := getenv("NODE_PARALLELISM", ""); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			return config{}, errors.Errorf("NODE_PARALLELISM must be a positive integer, got %q", v)
		}
		cfg.Parallelism = p
	}
	if v := getenv("NODE_MAX_PAYLOAD", ""); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return config{}, errors.Errorf("NODE_MAX_PAYLOAD must be an integer in [1, 4294967295], got %q", v)
		}
		cfg.MaxPayload = uint32(n)
	}
	return cfg, nil
}

// run serves the sort protocol on ln until ctx is cancelled. The admin
// listener and the tracer live exactly as long as the worker.
func run(ctx context.Context, ln net.Listener, cfg config, logger *slog.Logger) error {
	shutdownTracer, err := tracer.Init(ctx, "distsort-node", cfg.OTLPEndpoint)
	if err != nil {
		ln.Close()
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("node: tracer shutdown", "err", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	srv := worker.NewServer(worker.Options{
		Logger:      logger,
		Metrics:     metrics.NewWorker(reg),
		Parallelism: cfg.Parallelism,
		MaxPayload:  cfg.MaxPayload,
	})

	if cfg.AdminAddr != "" {
		adm, err := admin.Start(cfg.AdminAddr, admin.NewRouter(reg, func() any { return srv.Info() }), logger)
		if err != nil {
			ln.Close()
			return err
		}
		defer adm.Stop()
	}

	err = srv.Serve(ctx, ln)
	srv.Close()
	if errors.Is(err, worker.ErrServerClosed) {
		return nil
	}
	return err
}

// getenv retrieves an environment variable with a fallback default value.
//
// Example:
//
//	listen := getenv("NODE_LISTEN", ":12345")
//	// Returns $NODE_LISTEN if set, otherwise ":12345"
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
