package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/devpulse/internal/models"
)

const (
	entryExt      = ".json"
	tmpExt        = ".tmp"
	quarantineExt = ".corrupt"
)

// Dir is a directory-backed Queue: one JSON file per pending record.
// Entries are named <origin>_metrics_<unix10>_<seq6>.json; the
// zero-padded timestamp keeps lexicographic order chronological and the
// per-process sequence disambiguates records created within the same
// second.
type Dir struct {
	dir string

	mu  sync.Mutex
	seq uint64
}

// OpenDir opens (creating if needed) the queue directory. Failure here
// is fatal for the process: there is nowhere to hold records.
func OpenDir(dir string) (*Dir, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("open queue dir %s: %w", dir, err)
	}
	return &Dir{dir: dir}, nil
}

// Path returns the queue directory.
func (q *Dir) Path() string { return q.dir }

func (q *Dir) Enqueue(rec models.Record) (Entry, error) {
	if err := rec.Validate(); err != nil {
		return Entry{}, &WriteError{Err: err}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return Entry{}, &WriteError{Err: err}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	name := q.nextNameLocked(rec)
	tmp := filepath.Join(q.dir, name+tmpExt)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return Entry{}, &WriteError{Name: name, Err: err}
	}
	// Rename is the atomic publish: scans only see the final name.
	if err := os.Rename(tmp, filepath.Join(q.dir, name)); err != nil {
		os.Remove(tmp)
		return Entry{}, &WriteError{Name: name, Err: err}
	}
	return Entry{Name: name}, nil
}

// nextNameLocked picks the next unused entry name. The sequence counter
// resets on restart, so the existence check guards the rare same-second
// restart collision.
func (q *Dir) nextNameLocked(rec models.Record) string {
	for {
		q.seq++
		name := fmt.Sprintf("%s%010d_%06d%s", rec.Origin.FilePrefix(), rec.Timestamp, q.seq, entryExt)
		if _, err := os.Lstat(filepath.Join(q.dir, name)); errors.Is(err, fs.ErrNotExist) {
			return name
		}
	}
}

func (q *Dir) ListPending() ([]Entry, error) {
	dirents, err := os.ReadDir(q.dir)
	if err != nil {
		return nil, fmt.Errorf("scan queue dir %s: %w", q.dir, err)
	}
	// ReadDir returns names sorted, which is exactly the processing order.
	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		if d.IsDir() || !strings.HasSuffix(d.Name(), entryExt) {
			continue
		}
		entries = append(entries, Entry{Name: d.Name()})
	}
	return entries, nil
}

func (q *Dir) Read(e Entry) (models.Record, error) {
	data, err := os.ReadFile(filepath.Join(q.dir, e.Name))
	if err != nil {
		return models.Record{}, fmt.Errorf("read queue entry %s: %w", e.Name, err)
	}
	var rec models.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.Record{}, &CorruptError{Name: e.Name, Err: err}
	}
	if rec.DeviceName == "" || rec.Timestamp == 0 {
		return models.Record{}, &CorruptError{Name: e.Name, Err: fmt.Errorf("missing device_name or timestamp")}
	}
	if origin, err := models.ParseOrigin(e.Name); err == nil {
		rec.Origin = origin
	}
	return rec, nil
}

func (q *Dir) Remove(e Entry) error {
	err := os.Remove(filepath.Join(q.dir, e.Name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove queue entry %s: %w", e.Name, err)
	}
	return nil
}

func (q *Dir) Quarantine(e Entry) error {
	src := filepath.Join(q.dir, e.Name)
	err := os.Rename(src, src+quarantineExt)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("quarantine queue entry %s: %w", e.Name, err)
	}
	return nil
}
