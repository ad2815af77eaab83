// Package storage persists sorted sequences and loads input datasets.
//
// # Interface
//
// Store is deliberately small:
//   - Save(name, seq) - write a whole sequence under a name
//   - Load(name) - read it back
//   - Stats() - cumulative save counters
//
// # Implementations
//
// FileStore: one decimal value per line, ascending order as produced by the
// coordinator. Files are written to a temporary name and renamed into place.
// Names ending in ".zst" are compressed with zstd. The text format round-trips
// every value in -128..127 exactly.
//
// MemoryStore: map guarded by sync.RWMutex. Save and Load copy, so neither
// side can observe later changes by the other. Used in tests.
//
// # Example
//
//	store := storage.NewFileStore("/var/lib/distsort")
//	if err := store.Save("sorted.txt.zst", seq); err != nil {
//	    return err
//	}
//	back, err := store.Load("sorted.txt.zst")
package storage
