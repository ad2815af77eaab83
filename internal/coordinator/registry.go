package coordinator

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/dreamware/distsort/internal/cluster"
)

// DispatchState is the position of one endpoint's dispatch in a run.
//
// Transitions:
//
//	pending -> sent -> sorted
//	pending -> failed          (connect failed)
//	sent    -> failed          (I/O or protocol error)
type DispatchState int

const (
	StatePending DispatchState = iota
	StateSent
	StateSorted
	StateFailed
)

var stateNames = [...]string{"pending", "sent", "sorted", "failed"}

func (s DispatchState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("DispatchState(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText renders the state by name in the admin /info output.
func (s DispatchState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition is possible.
func (s DispatchState) Terminal() bool {
	return s == StateSorted || s == StateFailed
}

// Dispatch records what happened to one endpoint's partition.
//
// Dispatch values are copies; mutating one does not affect the registry.
type Dispatch struct {
	Endpoint cluster.Endpoint `json:"endpoint"`
	Error    string           `json:"error,omitempty"`
	Elapsed  time.Duration    `json:"elapsed"`
	Slot     int              `json:"slot"`     // Endpoint index, also the partition index
	Elements int              `json:"elements"` // Partition length sent to the endpoint
	State    DispatchState    `json:"state"`
}

// Registry tracks per-endpoint dispatch state for one run.
//
// The sorted partitions themselves never pass through the registry: each
// dispatch task writes its own result slot and the run reads the slots only
// after joining. The registry exists so the failure of an endpoint is
// recorded somewhere other than the log, and so the admin endpoint can
// show progress while a run is in flight.
//
// Concurrency Model:
//   - One dispatch task updates one slot; tasks never share a slot
//   - Readers (admin handlers, the final report) take RLock
//   - All returned data is copied
type Registry struct {
	dispatches []Dispatch
	mu         sync.RWMutex
}

// NewRegistry creates a registry with one pending dispatch per endpoint.
// sizes[i] is the partition length for endpoints[i].
func NewRegistry(endpoints []cluster.Endpoint, sizes []int) *Registry {
	d := make([]Dispatch, len(endpoints))
	for i, ep := range endpoints {
		d[i] = Dispatch{Slot: i, Endpoint: ep, State: StatePending}
		if i < len(sizes) {
			d[i].Elements = sizes[i]
		}
	}
	return &Registry{dispatches: d}
}

// Len returns the number of endpoints tracked.
func (r *Registry) Len() int {
	return len(r.dispatches)
}

// MarkSent records that the partition for slot is on the wire.
func (r *Registry) MarkSent(slot int) error {
	return r.update(slot, func(d *Dispatch) error {
		if d.State != StatePending {
			return errors.Errorf("slot %d: %s -> %s", slot, d.State, StateSent)
		}
		d.State = StateSent
		return nil
	})
}

// MarkSorted records a successful exchange for slot.
func (r *Registry) MarkSorted(slot int, elapsed time.Duration) error {
	return r.update(slot, func(d *Dispatch) error {
		if d.State != StateSent {
			return errors.Errorf("slot %d: %s -> %s", slot, d.State, StateSorted)
		}
		d.State = StateSorted
		d.Elapsed = elapsed
		return nil
	})
}

// MarkFailed records cause as the reason slot contributed nothing.
func (r *Registry) MarkFailed(slot int, elapsed time.Duration, cause error) error {
	return r.update(slot, func(d *Dispatch) error {
		if d.State.Terminal() {
			return errors.Errorf("slot %d: %s -> %s", slot, d.State, StateFailed)
		}
		d.State = StateFailed
		d.Elapsed = elapsed
		if cause != nil {
			d.Error = cause.Error()
		}
		return nil
	})
}

// Get returns a copy of the dispatch for slot.
func (r *Registry) Get(slot int) (Dispatch, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if slot < 0 || slot >= len(r.dispatches) {
		return Dispatch{}, false
	}
	return r.dispatches[slot], true
}

// All returns a copy of every dispatch in endpoint order.
func (r *Registry) All() []Dispatch {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.dispatches)
}

// Count returns how many dispatches are in state s.
func (r *Registry) Count(s DispatchState) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, d := range r.dispatches {
		if d.State == s {
			n++
		}
	}
	return n
}

// Failed returns the endpoints whose dispatch failed, in endpoint order.
// An endpoint listed twice in the configuration appears once per slot.
func (r *Registry) Failed() []cluster.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []cluster.Endpoint
	for _, d := range r.dispatches {
		if d.State == StateFailed {
			out = append(out, d.Endpoint)
		}
	}
	return out
}

// Done reports whether every dispatch reached a terminal state.
func (r *Registry) Done() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !slices.ContainsFunc(r.dispatches, func(d Dispatch) bool {
		return !d.State.Terminal()
	})
}

func (r *Registry) update(slot int, fn func(*Dispatch) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slot < 0 || slot >= len(r.dispatches) {
		return errors.Errorf("invalid slot %d, must be in range [0, %d)", slot, len(r.dispatches))
	}
	return fn(&r.dispatches[slot])
}
