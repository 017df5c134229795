package queue

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/devpulse/internal/models"
)

// Mem is an in-memory Queue with the same ordering and naming contract
// as Dir. It backs tests and embedded setups where durability across
// restarts does not matter.
type Mem struct {
	mu          sync.Mutex
	entries     map[string][]byte
	quarantined map[string][]byte
	seq         uint64
}

func NewMem() *Mem {
	return &Mem{
		entries:     make(map[string][]byte),
		quarantined: make(map[string][]byte),
	}
}

func (q *Mem) Enqueue(rec models.Record) (Entry, error) {
	if err := rec.Validate(); err != nil {
		return Entry{}, &WriteError{Err: err}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return Entry{}, &WriteError{Err: err}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	name := fmt.Sprintf("%s%010d_%06d%s", rec.Origin.FilePrefix(), rec.Timestamp, q.seq, entryExt)
	q.entries[name] = data
	return Entry{Name: name}, nil
}

// Inject places raw bytes under an arbitrary entry name. Test hook for
// corrupt and legacy-named entries.
func (q *Mem) Inject(name string, data []byte) Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[name] = data
	return Entry{Name: name}
}

func (q *Mem) ListPending() ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	names := make([]string, 0, len(q.entries))
	for name := range q.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]Entry, len(names))
	for i, name := range names {
		entries[i] = Entry{Name: name}
	}
	return entries, nil
}

func (q *Mem) Read(e Entry) (models.Record, error) {
	q.mu.Lock()
	data, ok := q.entries[e.Name]
	q.mu.Unlock()
	if !ok {
		return models.Record{}, fmt.Errorf("read queue entry %s: not found", e.Name)
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

func (q *Mem) Remove(e Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, e.Name)
	return nil
}

func (q *Mem) Quarantine(e Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if data, ok := q.entries[e.Name]; ok {
		q.quarantined[e.Name] = data
		delete(q.entries, e.Name)
	}
	return nil
}

// QuarantinedNames lists quarantined entry names, for tests and
// inspection.
func (q *Mem) QuarantinedNames() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	names := make([]string, 0, len(q.quarantined))
	for name := range q.quarantined {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
