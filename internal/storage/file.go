package storage

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// CompressedSuffix marks names whose files are zstd-compressed.
const CompressedSuffix = ".zst"

// OutputMode is the permission of a saved file.
const OutputMode os.FileMode = 0o644

const ioBufferSize = 1 << 20

// FileStore writes each sequence as a text file with one decimal value per
// line. Names ending in CompressedSuffix are zstd-compressed on the way out
// and decompressed on the way in. Relative names resolve against Dir.
type FileStore struct {
	Dir string

	stats StoreStats
	mu    sync.Mutex // Protects stats
}

// NewFileStore creates a store rooted at dir. An empty dir means the
// working directory.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// Path returns the file a name maps to.
func (f *FileStore) Path(name string) string {
	if filepath.IsAbs(name) || f.Dir == "" {
		return name
	}
	return filepath.Join(f.Dir, name)
}

// Save writes seq to a temporary file next to the target and renames it
// into place once everything is flushed, so a failed run never leaves a
// truncated result behind.
func (f *FileStore) Save(name string, seq []int8) (err error) {
	path := f.Path(name)
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "save %s", name)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = encode(tmp, seq, strings.HasSuffix(name, CompressedSuffix)); err != nil {
		return errors.Wrapf(err, "save %s", name)
	}
	// CreateTemp opens with 0600; the result is meant to be shared.
	if err = tmp.Chmod(OutputMode); err != nil {
		return errors.Wrapf(err, "save %s", name)
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, "save %s", name)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "save %s", name)
	}

	f.mu.Lock()
	f.stats.Saves++
	f.stats.Elements += int64(len(seq))
	f.mu.Unlock()
	return nil
}

// Load parses a file written by Save. Blank lines are ignored.
func (f *FileStore) Load(name string) ([]int8, error) {
	file, err := os.Open(f.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNotFound, name)
		}
		return nil, errors.Wrapf(err, "load %s", name)
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(name, CompressedSuffix) {
		dec, err := zstd.NewReader(file)
		if err != nil {
			return nil, errors.Wrapf(err, "load %s", name)
		}
		defer dec.Close()
		r = dec
	}

	seq, err := decode(r)
	return seq, errors.Wrapf(err, "load %s", name)
}

// Stats returns cumulative save statistics.
func (f *FileStore) Stats() StoreStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// encode writes seq as decimal lines. The zstd encoder is closed on every
// path so its goroutines never outlive the call.
func encode(w io.Writer, seq []int8, compress bool) (err error) {
	if compress {
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := zw.Close(); err == nil {
				err = cerr
			}
		}()
		w = zw
	}

	bw := bufio.NewWriterSize(w, ioBufferSize)
	line := make([]byte, 0, 8)
	for _, v := range seq {
		line = strconv.AppendInt(line[:0], int64(v), 10)
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func decode(r io.Reader) ([]int8, error) {
	sc := bufio.NewScanner(bufio.NewReaderSize(r, ioBufferSize))
	seq := make([]int8, 0, 1024)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		v, err := strconv.ParseInt(string(line), 10, 8)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
		seq = append(seq, int8(v))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return seq, nil
}
