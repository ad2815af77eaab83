// Package main runs one distributed sort: it builds the dataset, hands a
// partition to every configured worker, merges the replies, writes the
// result and tells the workers to shut down.
//
// Configuration comes from an optional YAML file (COORDINATOR_CONFIG)
// overridden by SORT_* variables. See cluster.Config for the file format.
//
//	SORT_ENDPOINTS=10.0.0.11:12345,10.0.0.12:12345 SORT_OUTPUT=sorted.txt ./coordinator
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dreamware/distsort/internal/admin"
	"github.com/dreamware/distsort/internal/cluster"
	"github.com/dreamware/distsort/internal/coordinator"
	"github.com/dreamware/distsort/internal/dataset"
	"github.com/dreamware/distsort/internal/logging"
	"github.com/dreamware/distsort/internal/metrics"
	"github.com/dreamware/distsort/internal/storage"
	"github.com/dreamware/distsort/internal/tracer"
)

// logFatal is a variable to allow mocking log.Fatal in tests.
var logFatal = log.Fatalf

func main() {
	logger, err := logging.New(os.Stderr, getenv("LOG_LEVEL", "info"), getenv("LOG_FORMAT", "text"))
	if err != nil {
		logFatal("coordinator: %v", err)
	}
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		logFatal("coordinator: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := runEnv{
		AdminAddr:    getenv("COORDINATOR_ADMIN_ADDR", ""),
		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Logger:       logger,
		Stdin:        os.Stdin,
		Stdout:       os.Stdout,
	}
	rep, err := run(ctx, cfg, env)
	if err != nil {
		logFatal("coordinator: %v", err)
	}
	fmt.Printf("Sorted %d elements into %s in %s\n", rep.Elements, rep.Output, rep.Elapsed)
}

// loadConfig layers the YAML file, then the SORT_* variables, over
// cluster.DefaultConfig. An empty Output is left for run to ask about.
func loadConfig() (cluster.Config, error) {
	cfg := cluster.DefaultConfig()
	if path := getenv("COORDINATOR_CONFIG", ""); path != "" {
		c, err := cluster.LoadConfig(path)
		if err != nil {
			return cluster.Config{}, err
		}
		cfg = c
	}

	if v := getenv("SORT_ENDPOINTS", ""); v != "" {
		eps, err := cluster.ParseEndpoints(v)
		if err != nil {
			return cluster.Config{}, errors.Wrap(err, "SORT_ENDPOINTS")
		}
		cfg.Endpoints = eps
	}
	if v := getenv("SORT_DATASET_SIZE", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cluster.Config{}, errors.Wrap(err, "SORT_DATASET_SIZE")
		}
		cfg.DatasetSize = n
	}
	if v := getenv("SORT_SEED", ""); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return cluster.Config{}, errors.Wrap(err, "SORT_SEED")
		}
		cfg.Seed = &seed
	}
	cfg.Input = getenv("SORT_INPUT", cfg.Input)
	cfg.Output = getenv("SORT_OUTPUT", cfg.Output)

	if err := cfg.Validate(); err != nil {
		return cluster.Config{}, err
	}
	return cfg, nil
}

// promptOutput asks for the output file name and reads one line.
func promptOutput(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter output file name: ")
	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", errors.Wrap(err, "read output name")
		}
		return "", errors.New("no output file name given")
	}
	name := strings.TrimSpace(sc.Text())
	if name == "" {
		return "", errors.New("no output file name given")
	}
	return name, nil
}

// source picks the dataset: a stored file when Input is set, otherwise
// DatasetSize generated values.
func source(cfg cluster.Config) dataset.Source {
	if cfg.Input != "" {
		return dataset.Stored{Store: storage.NewFileStore(""), Name: cfg.Input}
	}
	return dataset.Random{Seed: cfg.Seed, Size: cfg.DatasetSize}
}

type runEnv struct {
	Logger       *slog.Logger
	Stdin        io.Reader // Answers the output prompt
	Stdout       io.Writer // Shows the output prompt
	AdminAddr    string
	OTLPEndpoint string
}

// run sorts once. Without a configured output the name is asked for on
// env.Stdin once the merge is done, as the interactive tool always did.

func run(ctx context.Context, cfg cluster.Config, env runEnv) (coordinator.Report, error) {
	shutdownTracer, err := tracer.Init(ctx, "distsort-coordinator", env.OTLPEndpoint)
	if err != nil {
		return coordinator.Report{}, err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			env.Logger.Warn("coordinator: tracer shutdown", "err", err)
		}
	}()

	var ask func() (string, error)
	if cfg.Output == "" {
		ask = func() (string, error) { return promptOutput(env.Stdin, env.Stdout) }
	}

	reg := prometheus.NewRegistry()
	c, err := coordinator.New(coordinator.Options{
		Source:    source(cfg),
		Store:     storage.NewFileStore(""),
		Output:    cfg.Output,
		AskOutput: ask,
		Endpoints: cfg.Endpoints,
		Logger:    env.Logger,
		Metrics:   metrics.NewCoordinator(reg),
	})
	if err != nil {
		return coordinator.Report{}, err
	}

	if env.AdminAddr != "" {
		adm, err := admin.Start(env.AdminAddr, admin.NewRouter(reg, func() any { return c.Info() }), env.Logger)
		if err != nil {
			return coordinator.Report{}, err
		}
		defer adm.Stop()
	}

	env.Logger.Info("coordinator: starting",
		"endpoints", len(cfg.Endpoints),
		"dataset_size", cfg.DatasetSize,
		"input", cfg.Input,
		"output", cfg.Output,
	)
	rep, err := c.Run(ctx)
	if err != nil {
		return rep, err
	}
	env.Logger.Info("coordinator: report",
		"run", rep.RunID,
		"input", rep.Input,
		"elements", rep.Elements,
		"endpoints", rep.Endpoints,
		"failed", len(rep.Failed),
		"digest", fmt.Sprintf("%016x", rep.Digest),
		"elapsed", rep.Elapsed,
	)
	return rep, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
