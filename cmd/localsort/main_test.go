package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slices"

	"github.com/dreamware/distsort/internal/cluster"
	"github.com/dreamware/distsort/internal/dataset"
	"github.com/dreamware/distsort/internal/sorting"
	"github.com/dreamware/distsort/internal/storage"
)

func TestConfigFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, k := range []string{"SORT_DATASET_SIZE", "SORT_SEED", "SORT_OUTPUT", "NODE_PARALLELISM"} {
			t.Setenv(k, "")
		}
		cfg, err := configFromEnv()
		require.NoError(t, err)
		assert.Equal(t, config{Size: cluster.DefaultDatasetSize}, cfg)
	})

	t.Run("set", func(t *testing.T) {
		t.Setenv("SORT_DATASET_SIZE", "12")
		t.Setenv("SORT_SEED", "5")
		t.Setenv("NODE_PARALLELISM", "3")
		cfg, err := configFromEnv()
		require.NoError(t, err)
		assert.Equal(t, 12, cfg.Size)
		assert.Equal(t, 3, cfg.Parallelism)
		require.NotNil(t, cfg.Seed)
		assert.Equal(t, uint64(5), *cfg.Seed)
	})

	for _, tt := range []struct{ key, val string }{
		{"SORT_DATASET_SIZE", "-1"},
		{"SORT_SEED", "x"},
		{"NODE_PARALLELISM", "0"},
	} {
		t.Run(tt.key+"="+tt.val, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := configFromEnv()
			assert.Error(t, err)
		})
	}
}

func TestRun(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	seed := uint64(99)

	for _, size := range []int{0, 999, 1000, 12345} {
		out := filepath.Join(t.TempDir(), "local.txt")
		res, err := run(context.Background(), config{Seed: &seed, Size: size, Parallelism: 4, Output: out}, logger)
		require.NoError(t, err)
		assert.Equal(t, size, res.Size)
		if size < sorting.SequentialThreshold {
			assert.Zero(t, res.Report)
		} else {
			assert.Equal(t, 4, res.Report.Chunks)
		}

		got, err := storage.NewFileStore("").Load(out)
		require.NoError(t, err)
		assert.Len(t, got, size)
		assert.True(t, slices.IsSorted(got))
		assert.Equal(t, dataset.Digest(got), res.Digest)

		// Same seed, same digest as sorting the generated data directly.
		data, err := dataset.Random{Seed: &seed, Size: size}.Dataset(context.Background())
		require.NoError(t, err)
		slices.Sort(data)
		assert.Equal(t, dataset.Digest(data), res.Digest)
	}
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, result{Size: 3, Digest: 0xab})
	assert.Equal(t, "Sorted 3 elements locally in 0s (digest 00000000000000ab)\n", buf.String())
}
