// Package coordinator implements the Distributor: the side of a distributed
// sort that owns the dataset, hands one partition to each worker and merges
// what comes back.
//
// # Overview
//
// A run is a single batch job. The coordinator splits the dataset with the
// remainder rule from package partition, so with N endpoints partition i has
// len/N elements plus one more when i < len%N. Every partition travels on
// its own connection as a SortRequest and comes back as a SortResponse of
// the same length.
//
// # Run Flow
//
//	dataset ──► partition.Split(N)
//	               │
//	     ┌─────────┼─────────┐           one goroutine per endpoint
//	     ▼         ▼         ▼
//	  worker 0  worker 1  worker N-1     SortRequest / SortResponse
//	     │         │         │
//	     └─────────┼─────────┘           join (errgroup.Wait)
//	               ▼
//	     sorting.TournamentMerge         non-empty slots, endpoint order
//	               │
//	               ▼
//	     storage.Store.Save ──► Report
//	               │
//	               ▼
//	     ShutdownNotice to every endpoint, fresh connection each
//
// # Failure Handling
//
// A connect, I/O or protocol error toward one endpoint is logged, recorded
// in the Registry and leaves that endpoint's slot empty. The run continues
// with the partitions that arrived and still reports success. Report.Failed
// lists the missing endpoints so callers that care can tell a complete
// result from a reduced one; the coordinator itself does not.
//
// There are no retries and no timeouts. Cancelling the context passed to
// Run closes open connections, which fails the affected dispatches the same
// way a network error would.
//
// # Concurrency
//
// Each dispatch goroutine writes exactly one result slot. The slots are read
// only after the join, so they need no lock. The Registry carries its own
// RWMutex because the admin endpoint may read it while dispatches are in
// flight.
package coordinator
