package cluster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:12345", Endpoint{Host: "127.0.0.1", Port: 12345}.Addr())
	assert.Equal(t, "[::1]:80", Endpoint{Host: "::1", Port: 80}.Addr())
	assert.Equal(t, "worker-1:9000", Endpoint{Host: "worker-1", Port: 9000}.String())
}

func TestEndpointValidate(t *testing.T) {
	tests := []struct {
		name    string
		ep      Endpoint
		wantErr bool
	}{
		{name: "valid", ep: Endpoint{Host: "localhost", Port: 1}},
		{name: "max port", ep: Endpoint{Host: "localhost", Port: 65535}},
		{name: "empty host", ep: Endpoint{Host: " ", Port: 12345}, wantErr: true},
		{name: "zero port", ep: Endpoint{Host: "localhost", Port: 0}, wantErr: true},
		{name: "port too large", ep: Endpoint{Host: "localhost", Port: 70000}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ep.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadEndpoint)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseEndpoints(t *testing.T) {
	t.Run("ordered list with blanks", func(t *testing.T) {
		eps, err := ParseEndpoints(" 10.0.0.1:12345, ,10.0.0.2:12346,10.0.0.1:12345")
		require.NoError(t, err)
		assert.Equal(t, []Endpoint{
			{Host: "10.0.0.1", Port: 12345},
			{Host: "10.0.0.2", Port: 12346},
			{Host: "10.0.0.1", Port: 12345},
		}, eps)
	})

	t.Run("empty list", func(t *testing.T) {
		_, err := ParseEndpoints(" , ")
		assert.ErrorIs(t, err, ErrNoEndpoints)
	})

	t.Run("missing port", func(t *testing.T) {
		_, err := ParseEndpoints("10.0.0.1")
		assert.ErrorIs(t, err, ErrBadEndpoint)
	})

	t.Run("non numeric port", func(t *testing.T) {
		_, err := ParseEndpoints("10.0.0.1:http")
		assert.ErrorIs(t, err, ErrBadEndpoint)
	})
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("full file", func(t *testing.T) {
		path := filepath.Join(dir, "full.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
dataset_size: 1000
seed: 42
output: out.txt
endpoints:
  - host: 127.0.0.1
    port: 9001
  - host: 127.0.0.1
    port: 9002
`), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 1000, cfg.DatasetSize)
		require.NotNil(t, cfg.Seed)
		assert.Equal(t, uint64(42), *cfg.Seed)
		assert.Equal(t, "out.txt", cfg.Output)
		assert.Len(t, cfg.Endpoints, 2)
		assert.Equal(t, 9002, cfg.Endpoints[1].Port)
	})

	t.Run("defaults fill missing fields", func(t *testing.T) {
		path := filepath.Join(dir, "partial.yaml")
		require.NoError(t, os.WriteFile(path, []byte("output: x.txt\n"), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, DefaultDatasetSize, cfg.DatasetSize)
		assert.Equal(t, DefaultConfig().Endpoints, cfg.Endpoints)
		assert.Nil(t, cfg.Seed)
	})

	t.Run("invalid endpoint", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("endpoints:\n  - host: a\n    port: 0\n"), 0o600))

		_, err := LoadConfig(path)
		assert.ErrorIs(t, err, ErrBadEndpoint)
	})

	t.Run("negative size", func(t *testing.T) {
		path := filepath.Join(dir, "neg.yaml")
		require.NoError(t, os.WriteFile(path, []byte("dataset_size: -5\n"), 0o600))

		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("endpoints: [\n"), 0o600))

		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}
