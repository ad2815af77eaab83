package cluster

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultDatasetSize is the number of elements sorted when nothing else is
// configured.
const DefaultDatasetSize = 30_000_000

// DefaultWorkerPort is the TCP port a worker listens on by default.
const DefaultWorkerPort = 12345

// Config is the coordinator's view of one batch run.
//
// Example file:
//
//	dataset_size: 30000000
//	seed: 42
//	output: sorted.txt
//	endpoints:
//	  - host: 10.0.0.11
//	    port: 12345
//	  - host: 10.0.0.12
//	    port: 12345
type Config struct {
	// Seed makes the generated dataset reproducible. Nil picks a random seed.
	Seed *uint64 `yaml:"seed,omitempty"`

	// Input names a stored dataset to load instead of generating one.
	Input string `yaml:"input,omitempty"`

	// Output names the file the sorted sequence is written to. Empty means
	// the coordinator asks for a name on stdin.
	Output string `yaml:"output,omitempty"`

	// Endpoints lists the workers in partition order.
	Endpoints []Endpoint `yaml:"endpoints"`

	// DatasetSize is the number of elements to generate.
	DatasetSize int `yaml:"dataset_size"`
}

// DefaultConfig returns a single local worker and the default dataset size.
func DefaultConfig() Config {
	return Config{
		DatasetSize: DefaultDatasetSize,
		Endpoints:   []Endpoint{{Host: "127.0.0.1", Port: DefaultWorkerPort}},
	}
}

// Validate checks the endpoints and the dataset size.
func (c Config) Validate() error {
	if len(c.Endpoints) == 0 {
		return ErrNoEndpoints
	}
	for i, e := range c.Endpoints {
		if err := e.Validate(); err != nil {
			return errors.Wrapf(err, "endpoint %d", i)
		}
	}
	if c.DatasetSize < 0 {
		return errors.Errorf("cluster: negative dataset size %d", c.DatasetSize)
	}
	return nil
}

// LoadConfig reads a YAML file on top of DefaultConfig and validates the
// result. Fields missing from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}
