// Package sorting holds the in-memory sorting primitives shared by the worker
// and the coordinator.
//
// # Components
//
// Merge: stable two-way merge of ascending sequences, left operand wins ties.
//
// MergeSort: sequential bottom-up merge sort built on the same merge loop.
//
// TournamentMerge: repeated pairwise merging. Every pair of a round is merged
// on its own goroutine and the round is joined before the next one starts.
// The worker uses it to recombine its chunk sorts; the coordinator uses it to
// recombine the worker responses.
//
// Sort / SortChunks: fork-join sort. The input is split with the partition
// rule into one chunk per goroutine, chunks are sorted on a bounded errgroup,
// and the sorted chunks go through TournamentMerge.
//
// # Concurrency
//
// Every goroutine writes exactly one slot of a result slice that is read only
// after errgroup.Wait returns. No locks are involved. A panic inside a task is
// recovered and reported as ErrTaskPanicked; it fails the whole call.
package sorting
