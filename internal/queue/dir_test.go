package queue

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devpulse/internal/models"
)

func newDirQueue(t *testing.T) *Dir {
	t.Helper()
	q, err := OpenDir(t.TempDir())
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	return q
}

func pcRecord(ts int64) models.Record {
	return models.Record{
		Origin:     models.OriginPC,
		DeviceName: "pc-host",
		Timestamp:  ts,
		Fields:     map[string]float64{"num_threads": 100, "num_processes": 40, "ram_usage_mb": 512},
	}
}

func TestEnqueuePublishesVisibleEntry(t *testing.T) {
	q := newDirQueue(t)

	entry, err := q.Enqueue(pcRecord(1000))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !strings.HasPrefix(entry.Name, "pc_metrics_0000001000_") || !strings.HasSuffix(entry.Name, ".json") {
		t.Fatalf("unexpected entry name %q", entry.Name)
	}

	pending, err := q.ListPending()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 || pending[0] != entry {
		t.Fatalf("pending = %v, want [%v]", pending, entry)
	}

	// The atomic publish must not leave temp files behind.
	dirents, err := os.ReadDir(q.Path())
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, d := range dirents {
		if strings.HasSuffix(d.Name(), ".tmp") {
			t.Fatalf("temp file %s left in queue dir", d.Name())
		}
	}
}

func TestEnqueueSameSecondGetsDistinctNames(t *testing.T) {
	q := newDirQueue(t)

	a, err := q.Enqueue(pcRecord(1000))
	if err != nil {
		t.Fatalf("enqueue a: %v", err)
	}
	b, err := q.Enqueue(pcRecord(1000))
	if err != nil {
		t.Fatalf("enqueue b: %v", err)
	}
	if a.Name == b.Name {
		t.Fatalf("same-second records collided on name %q", a.Name)
	}

	pending, err := q.ListPending()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d entries, want 2", len(pending))
	}
}

func TestListPendingIsSortedByName(t *testing.T) {
	q := newDirQueue(t)

	if _, err := q.Enqueue(pcRecord(2000)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.Enqueue(pcRecord(1000)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	pending, err := q.ListPending()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d entries, want 2", len(pending))
	}
	if !(pending[0].Name < pending[1].Name) {
		t.Fatalf("scan not sorted: %q before %q", pending[0].Name, pending[1].Name)
	}
	if !strings.HasPrefix(pending[0].Name, "pc_metrics_0000001000_") {
		t.Fatalf("older record should sort first, got %q", pending[0].Name)
	}
}

func TestReadRoundTrip(t *testing.T) {
	q := newDirQueue(t)

	entry, err := q.Enqueue(pcRecord(1000))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	rec, err := q.Read(entry)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rec.Origin != models.OriginPC {
		t.Fatalf("origin = %q, want pc", rec.Origin)
	}
	if rec.DeviceName != "pc-host" || rec.Timestamp != 1000 {
		t.Fatalf("record = %+v", rec)
	}
	if rec.Fields["ram_usage_mb"] != 512 {
		t.Fatalf("ram_usage_mb = %v", rec.Fields["ram_usage_mb"])
	}
}

func TestReadCorruptEntry(t *testing.T) {
	q := newDirQueue(t)

	name := "pc_metrics_0000001000_000001.json"
	if err := os.WriteFile(filepath.Join(q.Path(), name), []byte(`{"device_name": "pc-ho`), 0o644); err != nil {
		t.Fatalf("write corrupt entry: %v", err)
	}

	_, err := q.Read(Entry{Name: name})
	var corrupt *CorruptError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptError, got %v", err)
	}

	if err := q.Quarantine(Entry{Name: name}); err != nil {
		t.Fatalf("quarantine: %v", err)
	}
	pending, err := q.ListPending()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("quarantined entry still pending: %v", pending)
	}
	if _, err := os.Stat(filepath.Join(q.Path(), name+".corrupt")); err != nil {
		t.Fatalf("quarantined bytes missing: %v", err)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	q := newDirQueue(t)

	entry, err := q.Enqueue(pcRecord(1000))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Remove(entry); err != nil {
		t.Fatalf("first remove: %v", err)
	}
	if err := q.Remove(entry); err != nil {
		t.Fatalf("second remove of same entry: %v", err)
	}
}

func TestLegacyEntryNamesStillReadable(t *testing.T) {
	q := newDirQueue(t)

	name := "esp32_metrics_1001.json"
	body := `{"device_name": "esp32_device", "temperature": 23.5, "timestamp": 1001}`
	if err := os.WriteFile(filepath.Join(q.Path(), name), []byte(body), 0o644); err != nil {
		t.Fatalf("write legacy entry: %v", err)
	}

	pending, err := q.ListPending()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("legacy entry not scanned: %v", pending)
	}
	rec, err := q.Read(pending[0])
	if err != nil {
		t.Fatalf("read legacy entry: %v", err)
	}
	if rec.Origin != models.OriginSensor {
		t.Fatalf("origin = %q, want esp32", rec.Origin)
	}
	if rec.Fields["temperature"] != 23.5 {
		t.Fatalf("temperature = %v", rec.Fields["temperature"])
	}
}

func TestEnqueueRejectsInvalidRecord(t *testing.T) {
	q := newDirQueue(t)

	_, err := q.Enqueue(models.Record{Origin: models.OriginPC, DeviceName: "", Timestamp: 1000})
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("expected WriteError, got %v", err)
	}
}
