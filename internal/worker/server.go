package worker

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dreamware/distsort/internal/cluster"
	"github.com/dreamware/distsort/internal/metrics"
	"github.com/dreamware/distsort/internal/sorting"
)

// ErrServerClosed is returned by Serve after Close.
var ErrServerClosed = errors.New("worker: server closed")

const maxAcceptBackoff = time.Second

// DefaultMaxPayload bounds request payloads when Options.MaxPayload is zero.
// It fits one partition of the default dataset sent to a single worker.
const DefaultMaxPayload uint32 = cluster.DefaultDatasetSize

// Options configures a Server. The zero value is usable.
type Options struct {
	// Logger receives structured logs. Nil means slog.Default().
	Logger *slog.Logger

	// Metrics receives request metrics. Nil registers a fresh set on a
	// private registry.
	Metrics *metrics.Worker

	// Parallelism is the number of chunk-sort goroutines per request.
	// Zero or less means sorting.Parallelism() at request time.
	Parallelism int

	// MaxPayload bounds accepted request payloads; a larger length header
	// closes the connection before anything is allocated. Zero means
	// DefaultMaxPayload.
	MaxPayload uint32
}

// Server is the worker side of the sort protocol. It accepts connections
// forever and runs one session goroutine per connection; sessions share no
// mutable state except the counters.
type Server struct {
	conns   map[net.Conn]struct{}
	ln      net.Listener
	log     *slog.Logger
	metrics *metrics.Worker
	opts    Options
	stats   counters
	nextID  atomic.Uint64
	wg      sync.WaitGroup
	mu      sync.Mutex // Protects conns, ln and closed
	closed  bool
}

// NewServer creates a server that is not yet listening.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewWorker(prometheus.NewRegistry())
	}
	if opts.MaxPayload == 0 {
		opts.MaxPayload = DefaultMaxPayload
	}
	return &Server{
		conns:   make(map[net.Conn]struct{}),
		log:     opts.Logger,
		metrics: opts.Metrics,
		opts:    opts,
	}
}

// ListenAndServe listens on the TCP address addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "worker: listen %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until Close is called or ctx is done, and
// always returns a non-nil error. Per-connection failures never stop the
// accept loop; transient accept errors are retried with a capped backoff.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.ln = ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	s.log.Info("worker: listening", "addr", ln.Addr().String(), "parallelism", s.parallelism())

	var backoff time.Duration
	for {
		nc, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return errors.Wrap(err, "worker: listener closed")
			}
			backoff = min(max(2*backoff, 5*time.Millisecond), maxAcceptBackoff)
			s.log.Warn("worker: accept failed, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		if !s.track(nc) {
			nc.Close()
			return ErrServerClosed
		}
		sess := newSession(s, nc)
		go sess.run(ctx)
	}
}

// Addr returns the listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Close stops the accept loop, closes every open connection and waits for
// their sessions to return. It is safe to call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.wg.Wait()
		return nil
	}
	s.closed = true
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	for nc := range s.conns {
		nc.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

// Stats returns a snapshot of the server counters.
func (s *Server) Stats() Stats {
	return s.stats.snapshot()
}

// Info is the payload of the admin /info endpoint.
type Info struct {
	Addr        string `json:"addr"`
	Stats       Stats  `json:"stats"`
	Parallelism int    `json:"parallelism"`
}

// Info describes the server for the admin endpoint.
func (s *Server) Info() Info {
	info := Info{Stats: s.Stats(), Parallelism: s.parallelism()}
	if addr := s.Addr(); addr != nil {
		info.Addr = addr.String()
	}
	return info
}

func (s *Server) parallelism() int {
	if s.opts.Parallelism > 0 {
		return s.opts.Parallelism
	}
	return sorting.Parallelism()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// track registers nc so Close can reach it. It reports false once the
// server is closed.
func (s *Server) track(nc net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[nc] = struct{}{}
	s.wg.Add(1)
	s.stats.accepted.Add(1)
	s.metrics.Connections.Inc()
	return true
}

func (s *Server) untrack(nc net.Conn) {
	s.mu.Lock()
	delete(s.conns, nc)
	s.mu.Unlock()

	s.stats.closed.Add(1)
	s.metrics.Connections.Dec()
	s.wg.Done()
}
