// Package dataset provides the sequences the coordinator sorts.
package dataset

import (
	"context"
	"encoding/binary"
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/dreamware/distsort/internal/storage"
)

// Source produces the full dataset for one run. The returned slice is owned
// by the caller.
type Source interface {
	Dataset(ctx context.Context) ([]int8, error)
}

// Random generates Size uniformly distributed values. With Seed set the
// sequence is reproducible across runs and hosts.
type Random struct {
	Seed *uint64
	Size int
}

// Dataset fills a new slice with pseudo-random values.
func (r Random) Dataset(ctx context.Context) ([]int8, error) {
	if r.Size < 0 {
		return nil, errors.Errorf("dataset: negative size %d", r.Size)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var src *rand.Rand
	if r.Seed != nil {
		src = rand.New(rand.NewPCG(*r.Seed, *r.Seed^0x9e3779b97f4a7c15))
	} else {
		src = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	out := make([]int8, r.Size)
	var word [8]byte
	for i := 0; i < len(out); i += len(word) {
		binary.LittleEndian.PutUint64(word[:], src.Uint64())
		for j := 0; j < len(word) && i+j < len(out); j++ {
			out[i+j] = int8(word[j])
		}
	}
	return out, nil
}

// Stored loads a previously saved sequence.
type Stored struct {
	Store storage.Store
	Name  string
}

// Dataset loads the sequence from the store.
func (s Stored) Dataset(ctx context.Context) ([]int8, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seq, err := s.Store.Load(s.Name)
	return seq, errors.Wrap(err, "dataset")
}

// Static serves a fixed sequence. Each call returns a fresh copy.
type Static []int8

// Dataset returns a copy of the sequence.
func (s Static) Dataset(context.Context) ([]int8, error) {
	out := make([]int8, len(s))
	copy(out, s)
	return out, nil
}
