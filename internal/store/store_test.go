package store

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{
		Path:     filepath.Join(t.TempDir(), "devpulse.db"),
		PoolSize: 1,
		Logger:   zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return s
}

func TestInsertSnapshotAssignsID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := Snapshot{
		DeviceName:   "pc-alpha",
		Timestamp:    1700000000,
		NumThreads:   321,
		NumProcesses: 87,
		RAMUsageMB:   1536.5,
	}
	if err := s.InsertSnapshot(ctx, &snap); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if snap.ID <= 0 {
		t.Fatalf("ID = %d, want positive", snap.ID)
	}

	second := Snapshot{DeviceName: "pc-alpha", Timestamp: 1700000001}
	if err := s.InsertSnapshot(ctx, &second); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if second.ID <= snap.ID {
		t.Fatalf("second ID = %d, want > %d", second.ID, snap.ID)
	}
}

func TestRecentSnapshotsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, ts := range []int64{1000, 3000, 2000} {
		snap := Snapshot{
			DeviceName: "pc-alpha",
			Timestamp:  ts,
			NumThreads: int64(i),
		}
		if err := s.InsertSnapshot(ctx, &snap); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := s.RecentSnapshots(ctx, "", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3", len(got))
	}
	if got[0].Timestamp != 3000 || got[1].Timestamp != 2000 || got[2].Timestamp != 1000 {
		t.Fatalf("timestamps = %d, %d, %d, want newest first",
			got[0].Timestamp, got[1].Timestamp, got[2].Timestamp)
	}
}

func TestRecentSnapshotsLimitAndFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, row := range []Snapshot{
		{DeviceName: "pc-alpha", Timestamp: 1000},
		{DeviceName: "pc-beta", Timestamp: 2000},
		{DeviceName: "pc-alpha", Timestamp: 3000},
	} {
		if err := s.InsertSnapshot(ctx, &row); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := s.RecentSnapshots(ctx, "pc-alpha", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("filtered rows = %d, want 2", len(got))
	}
	for _, row := range got {
		if row.DeviceName != "pc-alpha" {
			t.Fatalf("row for %q leaked through filter", row.DeviceName)
		}
	}

	got, err = s.RecentSnapshots(ctx, "", 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("limited rows = %d, want 2", len(got))
	}
	if got[0].Timestamp != 3000 {
		t.Fatalf("first row timestamp = %d, want 3000", got[0].Timestamp)
	}
}

func TestInsertAndQueryReadings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, row := range []Reading{
		{DeviceName: "esp32_device", Timestamp: 1000, Temperature: 21.5},
		{DeviceName: "esp32_device", Timestamp: 2000, Temperature: 22.0},
		{DeviceName: "esp32_balcony", Timestamp: 3000, Temperature: 15.25},
	} {
		r := row
		if err := s.InsertReading(ctx, &r); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if r.ID <= 0 {
			t.Fatalf("ID = %d, want positive", r.ID)
		}
	}

	got, err := s.RecentReadings(ctx, "", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("rows = %d, want 3", len(got))
	}
	if got[0].DeviceName != "esp32_balcony" || got[0].Temperature != 15.25 {
		t.Fatalf("first row = %+v, want newest reading", got[0])
	}

	got, err = s.RecentReadings(ctx, "esp32_device", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("filtered rows = %d, want 2", len(got))
	}
	if got[0].Timestamp != 2000 {
		t.Fatalf("first filtered timestamp = %d, want 2000", got[0].Timestamp)
	}
}

func TestOpenRequiresLogger(t *testing.T) {
	if _, err := Open(Config{Path: ":memory:"}); err == nil {
		t.Fatal("expected error for missing logger")
	}
}
