// Package main sorts a generated dataset on this host only, with the same
// parallel engine a worker uses. It reports the elapsed time and the digest
// of the result so a run can be compared with a distributed one over the
// same seed.
//
//	SORT_DATASET_SIZE=30000000 SORT_SEED=42 ./localsort
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/dreamware/distsort/internal/cluster"
	"github.com/dreamware/distsort/internal/dataset"
	"github.com/dreamware/distsort/internal/logging"
	"github.com/dreamware/distsort/internal/sorting"
	"github.com/dreamware/distsort/internal/storage"
)

// logFatal is a variable to allow mocking log.Fatal in tests.
var logFatal = log.Fatalf

type config struct {
	Seed        *uint64
	Output      string // Optional; the sorted sequence is saved here when set
	Size        int
	Parallelism int
}

type result struct {
	Elapsed time.Duration
	Digest  uint64
	Report  sorting.Report
	Size    int
}

func main() {
	logger, err := logging.New(os.Stderr, getenv("LOG_LEVEL", "info"), getenv("LOG_FORMAT", "text"))
	if err != nil {
		logFatal("localsort: %v", err)
	}
	slog.SetDefault(logger)

	cfg, err := configFromEnv()
	if err != nil {
		logFatal("localsort: %v", err)
	}
	res, err := run(context.Background(), cfg, logger)
	if err != nil {
		logFatal("localsort: %v", err)
	}
	printResult(os.Stdout, res)
}

func configFromEnv() (config, error) {
	cfg := config{Size: cluster.DefaultDatasetSize, Output: getenv("SORT_OUTPUT", "")}
	if v := getenv("SORT_DATASET_SIZE", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return config{}, errors.Errorf("SORT_DATASET_SIZE must be a non-negative integer, got %q", v)
		}
		cfg.Size = n
	}
	if v := getenv("SORT_SEED", ""); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return config{}, errors.Wrap(err, "SORT_SEED")
		}
		cfg.Seed = &seed
	}
	if v := getenv("NODE_PARALLELISM", ""); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			return config{}, errors.Errorf("NODE_PARALLELISM must be a positive integer, got %q", v)
		}
		cfg.Parallelism = p
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config, logger *slog.Logger) (result, error) {
	data, err := dataset.Random{Seed: cfg.Seed, Size: cfg.Size}.Dataset(ctx)
	if err != nil {
		return result{}, err
	}
	logger.Info("localsort: dataset ready", "elements", len(data))

	start := time.Now()
	sorted, rep, err := sorting.SortWithReport(data, cfg.Parallelism)
	if err != nil {
		return result{}, err
	}
	res := result{
		Elapsed: time.Since(start),
		Digest:  dataset.Digest(sorted),
		Report:  rep,
		Size:    len(sorted),
	}
	logger.Info("localsort: sorted",
		"elements", res.Size,
		"chunks", rep.Chunks,
		"rounds", rep.Rounds,
		"elapsed", res.Elapsed,
	)

	if cfg.Output != "" {
		if err := storage.NewFileStore("").Save(cfg.Output, sorted); err != nil {
			return result{}, err
		}
		logger.Info("localsort: saved", "output", cfg.Output)
	}
	return res, nil
}

func printResult(w io.Writer, res result) {
	fmt.Fprintf(w, "Sorted %d elements locally in %s (digest %016x)\n", res.Size, res.Elapsed, res.Digest)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
