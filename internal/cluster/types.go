package cluster

import (
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrBadEndpoint is returned for an endpoint without a host or with a
	// port outside 1..65535.
	ErrBadEndpoint = errors.New("cluster: bad endpoint")

	// ErrNoEndpoints is returned when a configuration names no workers.
	ErrNoEndpoints = errors.New("cluster: no worker endpoints")
)

// Endpoint identifies one worker by host and TCP port. It is static
// configuration and is never mutated at runtime.
type Endpoint struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// Addr returns the dialable "host:port" form, bracketing IPv6 hosts.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string { return e.Addr() }

// Validate checks that the endpoint can be dialed.
func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.Host) == "" {
		return errors.Wrapf(ErrBadEndpoint, "%q: empty host", e.Addr())
	}
	if e.Port < 1 || e.Port > 65535 {
		return errors.Wrapf(ErrBadEndpoint, "%q: port out of range", e.Addr())
	}
	return nil
}

// ParseEndpoint parses "host:port".
func ParseEndpoint(s string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return Endpoint{}, errors.Wrapf(ErrBadEndpoint, "%q: %v", s, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, errors.Wrapf(ErrBadEndpoint, "%q: port %q is not a number", s, portStr)
	}
	e := Endpoint{Host: host, Port: port}
	return e, e.Validate()
}

// ParseEndpoints parses a comma-separated list of "host:port" entries.
// Blank entries are skipped; order is preserved because it decides which
// partition each worker receives. The same endpoint may appear twice, in
// which case it receives two partitions on two connections.
func ParseEndpoints(s string) ([]Endpoint, error) {
	var out []Endpoint
	for _, field := range strings.Split(s, ",") {
		if strings.TrimSpace(field) == "" {
			continue
		}
		e, err := ParseEndpoint(field)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, ErrNoEndpoints
	}
	return out, nil
}
