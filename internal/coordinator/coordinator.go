package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/distsort/internal/cluster"
	"github.com/dreamware/distsort/internal/dataset"
	"github.com/dreamware/distsort/internal/metrics"
	"github.com/dreamware/distsort/internal/partition"
	"github.com/dreamware/distsort/internal/protocol"
	"github.com/dreamware/distsort/internal/sorting"
	"github.com/dreamware/distsort/internal/storage"
	"github.com/dreamware/distsort/internal/tracer"
)

var (
	// ErrNoSource is returned by New when Options.Source is nil.
	ErrNoSource = errors.New("coordinator: no dataset source")

	// ErrNoStore is returned by New when Options.Store is nil.
	ErrNoStore = errors.New("coordinator: no store")

	// ErrNoOutput is returned by New when neither Options.Output nor
	// Options.AskOutput is set.
	ErrNoOutput = errors.New("coordinator: no output name")
)

// DialFunc opens a protocol connection to a worker address.
type DialFunc func(ctx context.Context, addr string) (*protocol.Conn, error)

// Options configures a Coordinator.
type Options struct {
	Source  dataset.Source // Required
	Store   storage.Store  // Required; receives the final sequence
	Logger  *slog.Logger   // Nil means slog.Default()
	Metrics *metrics.Coordinator
	Dial    DialFunc // Nil means protocol.Dial

	// Output names the final sequence in Store.
	Output string

	// AskOutput supplies the name when Output is empty. It is called once
	// per run, after the merge and right before the save.
	AskOutput func() (string, error)

	// Endpoints receive one partition each, in order. Duplicates are
	// allowed and get separate partitions.
	Endpoints []cluster.Endpoint
}

// Report summarises one run.
//
// A run with failed endpoints still succeeds: Elements is then smaller than
// Input and Failed names the endpoints whose partitions are missing.
type Report struct {
	RunID     string             `json:"run_id"`
	Output    string             `json:"output"`
	Failed    []cluster.Endpoint `json:"failed,omitempty"`
	Elapsed   time.Duration      `json:"elapsed"` // Partition through merge, excluding the save
	Digest    uint64             `json:"digest"`
	Input     int                `json:"input"`    // Dataset length
	Elements  int                `json:"elements"` // Final sequence length
	Endpoints int                `json:"endpoints"`
}

// Complete reports whether every partition made it into the output.
func (r Report) Complete() bool {
	return len(r.Failed) == 0
}

// Coordinator runs distributed sorts against a fixed set of workers.
type Coordinator struct {
	log      *slog.Logger
	metrics  *metrics.Coordinator
	registry *Registry
	last     *Report
	runID    string
	opts     Options
	mu       sync.Mutex // Protects registry, last and runID
}

// New validates opts and creates a Coordinator.
func New(opts Options) (*Coordinator, error) {
	switch {
	case len(opts.Endpoints) == 0:
		return nil, cluster.ErrNoEndpoints
	case opts.Source == nil:
		return nil, ErrNoSource
	case opts.Store == nil:
		return nil, ErrNoStore
	case opts.Output == "" && opts.AskOutput == nil:
		return nil, ErrNoOutput
	}
	for _, ep := range opts.Endpoints {
		if err := ep.Validate(); err != nil {
			return nil, err
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCoordinator(prometheus.NewRegistry())
	}
	if opts.Dial == nil {
		opts.Dial = protocol.Dial
	}
	return &Coordinator{
		log:     opts.Logger,
		metrics: opts.Metrics,
		opts:    opts,
	}, nil
}

// Run performs one distributed sort:
//
//  1. obtain the dataset
//  2. split it into one partition per endpoint with the remainder rule
//  3. send every partition concurrently and wait for all replies
//  4. tournament-merge the replies that arrived, in endpoint order
//  5. save the result under Options.Output, asking for a name first
//     when none is configured
//  6. send ShutdownNotice to every endpoint on a fresh connection
//
// An endpoint that cannot be reached or answers badly is logged and its
// partition is left out of the result; the run carries on. Run returns an
// error only when the dataset, the merge, the output name or the save
// fails. The shutdown
// broadcast happens in every case and its failures are ignored.
//
// Cancelling ctx aborts connects and closes open connections. No deadline
// is applied otherwise.
func (c *Coordinator) Run(ctx context.Context) (rep Report, err error) {
	eps := c.opts.Endpoints
	rep = Report{RunID: uuid.NewString(), Output: c.opts.Output, Endpoints: len(eps)}
	log := c.log.With("run", rep.RunID)

	ctx, span := tracer.Start(ctx, "coordinator.run", trace.WithAttributes(
		attribute.String("run.id", rep.RunID),
		attribute.Int("endpoints", len(eps)),
	))
	defer func() {
		tracer.Fail(span, err)
		span.End()
	}()
	defer c.broadcastShutdown(context.WithoutCancel(ctx), log)

	data, err := c.opts.Source.Dataset(ctx)
	if err != nil {
		return rep, errors.Wrap(err, "coordinator: obtain dataset")
	}
	rep.Input = len(data)

	start := time.Now()
	parts := partition.Split(data, len(eps))
	sizes := make([]int, len(parts))
	for i, p := range parts {
		sizes[i] = len(p)
	}
	reg := NewRegistry(eps, sizes)
	c.begin(rep.RunID, reg)
	log.Info("coordinator: run started", "elements", len(data), "endpoints", len(eps))

	results := c.dispatch(ctx, log, reg, parts)

	runs := make([][]int8, 0, len(results))
	for _, r := range results {
		if r != nil {
			runs = append(runs, r)
		}
	}
	mergeStart := time.Now()
	merged, err := sorting.TournamentMerge(runs)
	if err != nil {
		return rep, errors.Wrap(err, "coordinator: merge")
	}
	rep.Elapsed = time.Since(start)
	log.Info("coordinator: merged",
		"runs", len(runs),
		"elements", len(merged),
		"merge", time.Since(mergeStart),
		"elapsed", rep.Elapsed,
	)

	if rep.Output == "" {
		if rep.Output, err = c.opts.AskOutput(); err != nil {
			return rep, errors.Wrap(err, "coordinator: output name")
		}
	}
	if err := c.opts.Store.Save(rep.Output, merged); err != nil {
		return rep, errors.Wrapf(err, "coordinator: save %s", rep.Output)
	}

	rep.Elements = len(merged)
	rep.Digest = dataset.Digest(merged)
	rep.Failed = reg.Failed()
	c.finish(rep)

	c.metrics.ElementsMerged.Add(float64(len(merged)))
	c.metrics.RunDuration.Observe(rep.Elapsed.Seconds())
	log.Info("coordinator: run finished",
		"elements", rep.Elements,
		"output", rep.Output,
		"digest", rep.Digest,
		"elapsed", rep.Elapsed,
	)
	return rep, nil
}

// dispatch sends parts[i] to endpoint i on its own goroutine and returns the
// sorted replies by slot. A failed slot stays nil.
func (c *Coordinator) dispatch(ctx context.Context, log *slog.Logger, reg *Registry, parts [][]int8) [][]int8 {
	results := make([][]int8, len(parts))

	var g errgroup.Group
	for i, part := range parts {
		ep := c.opts.Endpoints[i]
		g.Go(func() error {
			start := time.Now()
			sorted, err := c.exchange(ctx, reg, i, ep, part)
			elapsed := time.Since(start)
			c.metrics.DispatchDuration.WithLabelValues(ep.String()).Observe(elapsed.Seconds())

			if err != nil {
				c.metrics.Dispatches.WithLabelValues(StateFailed.String()).Inc()
				if merr := reg.MarkFailed(i, elapsed, err); merr != nil {
					log.Debug("coordinator: registry", "err", merr)
				}
				log.Error("coordinator: endpoint failed, dropping its partition",
					"endpoint", ep.String(), "slot", i, "size", len(part), "err", err)
				return nil
			}

			results[i] = sorted
			c.metrics.Dispatches.WithLabelValues(StateSorted.String()).Inc()
			if merr := reg.MarkSorted(i, elapsed); merr != nil {
				log.Debug("coordinator: registry", "err", merr)
			}
			log.Info("coordinator: partition sorted",
				"endpoint", ep.String(), "slot", i, "size", len(sorted), "elapsed", elapsed)
			return nil
		})
	}
	// Tasks report failures through the registry, never through the group.
	_ = g.Wait()
	return results
}

// exchange performs one SortRequest/SortResponse round trip.
func (c *Coordinator) exchange(ctx context.Context, reg *Registry, slot int, ep cluster.Endpoint, part []int8) (_ []int8, err error) {
	ctx, span := tracer.Start(ctx, "coordinator.dispatch", trace.WithAttributes(
		attribute.String("endpoint", ep.String()),
		attribute.Int("slot", slot),
		attribute.Int("elements", len(part)),
	))
	defer func() {
		tracer.Fail(span, err)
		span.End()
	}()

	conn, err := c.opts.Dial(ctx, ep.Addr())
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := reg.MarkSent(slot); err != nil {
		return nil, err
	}
	if err := conn.Send(protocol.SortRequest(part)); err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	// A reply never carries more elements than the request did.
	conn.MaxPayload = uint32(len(part))
	resp, err := conn.Expect(protocol.TagSortResponse)
	if err != nil {
		return nil, errors.Wrap(err, "await response")
	}
	if len(resp.Payload) != len(part) {
		return nil, errors.Wrapf(protocol.ErrUnexpectedMessage,
			"response carries %d elements for a request of %d", len(resp.Payload), len(part))
	}
	return resp.Payload, nil
}

// broadcastShutdown sends ShutdownNotice to every endpoint on a new
// connection. Delivery failures are expected for endpoints that already
// failed and are only logged at debug level.
func (c *Coordinator) broadcastShutdown(ctx context.Context, log *slog.Logger) {
	var g errgroup.Group
	for _, ep := range c.opts.Endpoints {
		g.Go(func() error {
			if err := c.notify(ctx, ep); err != nil {
				log.Debug("coordinator: shutdown notice not delivered", "endpoint", ep.String(), "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	log.Info("coordinator: shutdown notices sent", "endpoints", len(c.opts.Endpoints))
}

func (c *Coordinator) notify(ctx context.Context, ep cluster.Endpoint) error {
	conn, err := c.opts.Dial(ctx, ep.Addr())
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.Send(protocol.Shutdown())
}

func (c *Coordinator) begin(runID string, reg *Registry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runID = runID
	c.registry = reg
}

func (c *Coordinator) finish(rep Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = &rep
}

// Registry returns the registry of the current or most recent run, or nil
// before the first run has partitioned its dataset.
func (c *Coordinator) Registry() *Registry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry
}

// Info is the payload of the admin /info endpoint.
type Info struct {
	Last       *Report            `json:"last_report,omitempty"`
	RunID      string             `json:"run_id,omitempty"`
	Endpoints  []cluster.Endpoint `json:"endpoints"`
	Dispatches []Dispatch         `json:"dispatches,omitempty"`
}

// Info describes the current or most recent run.
func (c *Coordinator) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	info := Info{RunID: c.runID, Endpoints: c.opts.Endpoints, Last: c.last}
	if c.registry != nil {
		info.Dispatches = c.registry.All()
	}
	return info
}
