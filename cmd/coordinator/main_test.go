package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slices"

	"github.com/dreamware/distsort/internal/cluster"
	"github.com/dreamware/distsort/internal/dataset"
	"github.com/dreamware/distsort/internal/storage"
	"github.com/dreamware/distsort/internal/worker"
)

var sortEnv = []string{
	"COORDINATOR_CONFIG", "SORT_ENDPOINTS", "SORT_DATASET_SIZE",
	"SORT_SEED", "SORT_INPUT", "SORT_OUTPUT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range sortEnv {
		t.Setenv(k, "")
	}
}

// TestGetenv tests the getenv utility function
func TestGetenv(t *testing.T) {
	t.Setenv("DISTSORT_TEST_SET", "v")
	t.Setenv("DISTSORT_TEST_EMPTY", "")
	assert.Equal(t, "v", getenv("DISTSORT_TEST_SET", "d"))
	assert.Equal(t, "d", getenv("DISTSORT_TEST_EMPTY", "d"))
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults with output", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SORT_OUTPUT", "out.txt")

		cfg, err := loadConfig()
		require.NoError(t, err)
		assert.Equal(t, cluster.DefaultDatasetSize, cfg.DatasetSize)
		assert.Equal(t, cluster.DefaultConfig().Endpoints, cfg.Endpoints)
		assert.Nil(t, cfg.Seed)
		assert.Equal(t, "out.txt", cfg.Output)
	})

	t.Run("env overrides file", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "coordinator.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
dataset_size: 100
seed: 7
output: from-file.txt
endpoints:
  - host: 10.0.0.1
    port: 12345
`), 0o644))
		t.Setenv("COORDINATOR_CONFIG", path)
		t.Setenv("SORT_ENDPOINTS", "a:1, b:2")
		t.Setenv("SORT_SEED", "9")

		cfg, err := loadConfig()
		require.NoError(t, err)
		assert.Equal(t, 100, cfg.DatasetSize)
		assert.Equal(t, "from-file.txt", cfg.Output)
		assert.Equal(t, []cluster.Endpoint{{Host: "a", Port: 1}, {Host: "b", Port: 2}}, cfg.Endpoints)
		require.NotNil(t, cfg.Seed)
		assert.Equal(t, uint64(9), *cfg.Seed)
	})

	t.Run("output left empty", func(t *testing.T) {
		clearEnv(t)
		cfg, err := loadConfig()
		require.NoError(t, err)
		assert.Empty(t, cfg.Output)
	})

	errCases := []struct {
		env  map[string]string
		name string
	}{
		{name: "bad endpoints", env: map[string]string{"SORT_ENDPOINTS": "nohost"}},
		{name: "bad size", env: map[string]string{"SORT_DATASET_SIZE": "lots"}},
		{name: "negative size", env: map[string]string{"SORT_DATASET_SIZE": "-1"}},
		{name: "bad seed", env: map[string]string{"SORT_SEED": "-4"}},
		{name: "missing file", env: map[string]string{"COORDINATOR_CONFIG": "/nonexistent/c.yaml"}},
	}
	for _, tt := range errCases {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("SORT_OUTPUT", "x")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadConfig()
			assert.Error(t, err)
		})
	}
}

func TestPromptOutput(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "a.txt\n", want: "a.txt"},
		{name: "no newline", in: "b.txt", want: "b.txt"},
		{name: "blank line", in: "   \n", wantErr: true},
		{name: "eof", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := promptOutput(strings.NewReader(tt.in), io.Discard)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSource(t *testing.T) {
	seed := uint64(3)
	assert.Equal(t, dataset.Random{Seed: &seed, Size: 10}, source(cluster.Config{Seed: &seed, DatasetSize: 10}))

	src, ok := source(cluster.Config{Input: "in.txt"}).(dataset.Stored)
	require.True(t, ok)
	assert.Equal(t, "in.txt", src.Name)
}

func startWorkers(t *testing.T, n int) []cluster.Endpoint {
	t.Helper()
	var eps []cluster.Endpoint
	for range n {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		srv := worker.NewServer(worker.Options{})
		go srv.Serve(context.Background(), ln)
		t.Cleanup(func() { srv.Close() })

		host, port, err := net.SplitHostPort(ln.Addr().String())
		require.NoError(t, err)
		p, err := strconv.Atoi(port)
		require.NoError(t, err)
		eps = append(eps, cluster.Endpoint{Host: host, Port: p})
	}
	return eps
}

func TestRun(t *testing.T) {
	eps := startWorkers(t, 2)
	seed := uint64(42)
	out := filepath.Join(t.TempDir(), "sorted.txt.zst")
	cfg := cluster.Config{Seed: &seed, DatasetSize: 5000, Endpoints: eps, Output: out}
	env := runEnv{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	rep, err := run(context.Background(), cfg, env)
	require.NoError(t, err)
	assert.True(t, rep.Complete())
	assert.Equal(t, 5000, rep.Elements)

	got, err := storage.NewFileStore("").Load(out)
	require.NoError(t, err)
	assert.Len(t, got, 5000)
	assert.True(t, slices.IsSorted(got))
	assert.Equal(t, dataset.Digest(got), rep.Digest)
}

// TestRunPromptsForOutput leaves the output unset, so run asks on stdin
// once the merge is done and saves under the answer.
func TestRunPromptsForOutput(t *testing.T) {
	eps := startWorkers(t, 1)
	out := filepath.Join(t.TempDir(), "answered.txt")
	var prompt bytes.Buffer
	env := runEnv{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Stdin:  strings.NewReader("  " + out + " \n"),
		Stdout: &prompt,
	}

	rep, err := run(context.Background(), cluster.Config{DatasetSize: 10, Endpoints: eps}, env)
	require.NoError(t, err)
	assert.Equal(t, out, rep.Output)
	assert.Equal(t, "Enter output file name: ", prompt.String())

	got, err := storage.NewFileStore("").Load(out)
	require.NoError(t, err)
	assert.Len(t, got, 10)

	t.Run("no answer", func(t *testing.T) {
		env.Stdin = strings.NewReader("")
		_, err := run(context.Background(), cluster.Config{DatasetSize: 10, Endpoints: eps}, env)
		assert.Error(t, err)
	})
}
