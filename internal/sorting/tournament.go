package sorting

import (
	"golang.org/x/exp/constraints"
	"golang.org/x/sync/errgroup"
)

// TournamentMerge merges any number of ascending runs into one ascending
// sequence.
//
// Each round pairs runs (0,1), (2,3), ... and merges every pair on its own
// goroutine; an odd run out is carried into the next round untouched. A round
// starts only after every merge of the previous round has returned, and the
// rounds repeat until one run is left.
//
// An empty list yields an empty sequence. A single run is returned as is
// without spawning any goroutine. The runs are never modified.
func TournamentMerge[T constraints.Ordered](runs [][]T) ([]T, error) {
	_, out, err := tournament(runs)
	return out, err
}

// tournament is TournamentMerge that also reports the number of rounds run.
func tournament[T constraints.Ordered](runs [][]T) (int, []T, error) {
	switch len(runs) {
	case 0:
		return 0, []T{}, nil
	case 1:
		return 0, runs[0], nil
	}

	rounds := 0
	for len(runs) > 1 {
		pairs := len(runs) / 2
		merged := make([][]T, pairs)

		var g errgroup.Group
		for i := range pairs {
			left, right := runs[2*i], runs[2*i+1]
			g.Go(guard(func() error {
				merged[i] = Merge(left, right)
				return nil
			}))
		}
		if err := g.Wait(); err != nil {
			return rounds, nil, err
		}

		if len(runs)%2 != 0 {
			merged = append(merged, runs[len(runs)-1])
		}
		runs = merged
		rounds++
	}
	return rounds, runs[0], nil
}
