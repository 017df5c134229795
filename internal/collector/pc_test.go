package collector

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/devpulse/internal/metrics"
	"github.com/devpulse/internal/models"
	"github.com/devpulse/internal/queue"
)

func TestPCSamplerEnqueuesSample(t *testing.T) {
	q := queue.NewMem()
	m := metrics.NewPipeline(prometheus.NewRegistry())
	s := NewPCSampler("pc-testhost", 0, q, zap.NewNop(), m)
	s.sample = func() (models.Record, error) {
		return models.NewPCRecord("pc-testhost", 321, 87, 1536.5), nil
	}

	s.collectOnce()

	entries, _ := q.ListPending()
	if len(entries) != 1 {
		t.Fatalf("pending = %d entries, want 1", len(entries))
	}
	rec, err := q.Read(entries[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rec.Origin != models.OriginPC || rec.DeviceName != "pc-testhost" {
		t.Fatalf("record = %+v", rec)
	}
	if rec.Fields["num_threads"] != 321 || rec.Fields["ram_usage_mb"] != 1536.5 {
		t.Fatalf("fields = %v", rec.Fields)
	}
}

func TestPCSamplerContainsSampleFailure(t *testing.T) {
	q := queue.NewMem()
	m := metrics.NewPipeline(prometheus.NewRegistry())
	s := NewPCSampler("pc-testhost", 0, q, zap.NewNop(), m)
	s.sample = func() (models.Record, error) {
		return models.Record{}, errors.New("proc unavailable")
	}

	// Must not panic and must not enqueue anything.
	s.collectOnce()

	entries, _ := q.ListPending()
	if len(entries) != 0 {
		t.Fatalf("failed sample produced entries: %v", entries)
	}
}
