package sorting

import (
	"fmt"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/distsort/internal/partition"
)

// SequentialThreshold is the input length below which Sort does not fan out
// and sorts on the calling goroutine.
const SequentialThreshold = 1000

// ErrTaskPanicked is the cause of the error returned when a chunk-sort or
// pair-merge goroutine panics, e.g. on a failed allocation. The whole call
// fails; siblings are allowed to finish but their results are discarded.
var ErrTaskPanicked = errors.New("sorting: task panicked")

// Parallelism returns the number of goroutines the engine runs at once when
// the caller does not pick a value.
func Parallelism() int {
	return runtime.GOMAXPROCS(0)
}

// Report describes one parallel sort for logging and metrics.
type Report struct {
	Chunks       int           // Non-empty chunks that got a sort task
	Rounds       int           // Tournament rounds needed to recombine them
	SortElapsed  time.Duration // Wall time of the chunk-sort phase
	MergeElapsed time.Duration // Wall time of the tournament phase
}

// Sort returns an ascending copy of in, fanning out over p goroutines when
// the input is at least SequentialThreshold long. p <= 0 means Parallelism().
func Sort[T constraints.Ordered](in []T, p int) ([]T, error) {
	out, _, err := SortWithReport(in, p)
	return out, err
}

// SortWithReport is Sort that also describes the work done. Below
// SequentialThreshold the Report is zero.
func SortWithReport[T constraints.Ordered](in []T, p int) ([]T, Report, error) {
	if len(in) < SequentialThreshold {
		return MergeSort(in), Report{}, nil
	}
	return SortChunks(in, p)
}

// SortChunks always takes the parallel path: it splits in into p chunks with
// the partition rule, sorts every non-empty chunk on a bounded pool of p
// goroutines, waits for all of them, and recombines the sorted chunks with
// TournamentMerge. p <= 0 means Parallelism().
func SortChunks[T constraints.Ordered](in []T, p int) ([]T, Report, error) {
	var rep Report
	if p <= 0 {
		p = Parallelism()
	}

	chunks := partition.Split(in, p)
	sorted := make([][]T, len(chunks))

	start := time.Now()
	var g errgroup.Group
	g.SetLimit(p)
	for i, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		rep.Chunks++
		g.Go(guard(func() error {
			sorted[i] = MergeSort(chunk)
			return nil
		}))
	}
	if err := g.Wait(); err != nil {
		return nil, rep, errors.Wrap(err, "sort chunks")
	}
	rep.SortElapsed = time.Since(start)

	runs := make([][]T, 0, rep.Chunks)
	for i, chunk := range chunks {
		if len(chunk) > 0 {
			runs = append(runs, sorted[i])
		}
	}

	start = time.Now()
	rounds, out, err := tournament(runs)
	if err != nil {
		return nil, rep, errors.Wrap(err, "merge chunks")
	}
	rep.Rounds = rounds
	rep.MergeElapsed = time.Since(start)
	return out, rep, nil
}

// guard turns a panic inside fn into an error wrapping ErrTaskPanicked, so
// errgroup reports it to the joining goroutine instead of crashing the
// process.
func guard(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Wrap(ErrTaskPanicked, fmt.Sprint(r))
			}
		}()
		return fn()
	}
}
