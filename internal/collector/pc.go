// Package collector holds the producers: periodic or event-driven
// samplers that turn measurements into Records and enqueue them. A
// failed enqueue loses that one sample; the producer logs and keeps
// going.
package collector

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/devpulse/internal/metrics"
	"github.com/devpulse/internal/models"
	"github.com/devpulse/internal/queue"
	"github.com/devpulse/internal/system"
)

// PCSampler periodically samples host resource counts (threads,
// processes, used RAM) and enqueues a PC record.
type PCSampler struct {
	deviceName string
	interval   time.Duration
	queue      queue.Queue
	logger     *zap.Logger
	metrics    *metrics.Pipeline

	// sample is swapped in tests; the default reads /proc.
	sample func() (models.Record, error)
}

func NewPCSampler(deviceName string, interval time.Duration, q queue.Queue, logger *zap.Logger, m *metrics.Pipeline) *PCSampler {
	s := &PCSampler{
		deviceName: deviceName,
		interval:   interval,
		queue:      q,
		logger:     logger,
		metrics:    m,
	}
	s.sample = s.readHostSample
	return s
}

// Run samples immediately and then on every tick until ctx is
// cancelled.
func (s *PCSampler) Run(ctx context.Context) error {
	s.logger.Info("pc sampler started",
		zap.String("device", s.deviceName),
		zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.collectOnce()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("pc sampler stopped")
			return nil
		case <-ticker.C:
			s.collectOnce()
		}
	}
}

func (s *PCSampler) collectOnce() {
	rec, err := s.sample()
	if err != nil {
		s.logger.Error("sample host metrics failed", zap.Error(err))
		return
	}
	enqueue(s.queue, rec, s.logger, s.metrics)
}

func (s *PCSampler) readHostSample() (models.Record, error) {
	tasks, err := system.ReadTaskCounts()
	if err != nil {
		return models.Record{}, err
	}
	mem, err := system.ReadMemoryInfo()
	if err != nil {
		return models.Record{}, err
	}
	return models.NewPCRecord(s.deviceName, tasks.Threads, tasks.Processes, mem.UsedMB()), nil
}

// enqueue writes one record and contains the failure: a full disk costs
// the current sample, never the producer loop.
func enqueue(q queue.Queue, rec models.Record, logger *zap.Logger, m *metrics.Pipeline) {
	entry, err := q.Enqueue(rec)
	if err != nil {
		m.EnqueueFailures.Inc()
		logger.Error("enqueue failed, record lost",
			zap.String("device", rec.DeviceName),
			zap.Error(err))
		return
	}
	m.RecordsEnqueued.WithLabelValues(string(rec.Origin)).Inc()
	logger.Debug("record enqueued",
		zap.String("entry", entry.Name),
		zap.String("device", rec.DeviceName))
}
