// Package uploader drains the durable queue to the ingestion endpoints.
// It is the only component with retry semantics: an entry that fails to
// deliver simply stays in the queue and is attempted again on the next
// cycle, so the queue itself is the retry buffer and the cycle interval
// is the backoff.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/devpulse/internal/metrics"
	"github.com/devpulse/internal/models"
	"github.com/devpulse/internal/queue"
)

// Config carries the externally supplied uploader settings. The core
// never hardcodes network addresses.
type Config struct {
	// Endpoints maps each origin to its ingestion URL.
	Endpoints map[models.Origin]string

	// Interval is the sleep between queue-processing cycles.
	Interval time.Duration

	// Timeout bounds each delivery POST so one unreachable endpoint
	// cannot stall the cycle.
	Timeout time.Duration
}

// DeliveryError reports a failed upload attempt: a transport error, a
// timeout, or a non-2xx response. The entry stays queued.
type DeliveryError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deliver to %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("deliver to %s: unexpected status %d", e.Endpoint, e.StatusCode)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Uploader scans the queue, routes each entry by the origin encoded in
// its name, POSTs the record as JSON, and removes the entry only on
// confirmed acceptance (HTTP 200 or 201).
type Uploader struct {
	queue     queue.Queue
	client    *http.Client
	endpoints map[models.Origin]string
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *metrics.Pipeline
}

func New(q queue.Queue, cfg Config, logger *zap.Logger, m *metrics.Pipeline) *Uploader {
	endpoints := make(map[models.Origin]string, len(cfg.Endpoints))
	for origin, url := range cfg.Endpoints {
		endpoints[origin] = url
	}
	return &Uploader{
		queue:     q,
		client:    &http.Client{},
		endpoints: endpoints,
		interval:  cfg.Interval,
		timeout:   cfg.Timeout,
		logger:    logger,
		metrics:   m,
	}
}

// Run processes the queue in cycles until ctx is cancelled. The current
// entry's attempt is allowed to finish before the loop exits.
func (u *Uploader) Run(ctx context.Context) error {
	u.logger.Info("uploader started",
		zap.Duration("interval", u.interval),
		zap.Duration("timeout", u.timeout))
	for {
		u.RunCycle(ctx)
		if !sleepWithContext(ctx, u.interval) {
			u.logger.Info("uploader stopped")
			return nil
		}
	}
}

// RunCycle performs one full pass over the pending entries. Every entry
// present at scan time gets exactly one attempt; no per-entry failure
// aborts the pass.
func (u *Uploader) RunCycle(ctx context.Context) {
	entries, err := u.queue.ListPending()
	if err != nil {
		u.logger.Error("queue scan failed", zap.Error(err))
		return
	}
	u.metrics.QueuePending.Set(float64(len(entries)))

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		u.processEntry(ctx, entry)
	}
}

// processEntry is the catch boundary: whatever goes wrong with one
// entry is logged and contained here.
func (u *Uploader) processEntry(ctx context.Context, entry queue.Entry) {
	origin, err := models.ParseOrigin(entry.Name)
	if err != nil {
		// Operator issue: leave the entry for the next cycle so a
		// config fix can still deliver it.
		u.metrics.UnknownEntries.Inc()
		u.logger.Warn("unclassifiable queue entry, leaving in place",
			zap.String("entry", entry.Name))
		return
	}
	endpoint, ok := u.endpoints[origin]
	if !ok {
		u.metrics.UnknownEntries.Inc()
		u.logger.Warn("no endpoint configured for origin, leaving entry in place",
			zap.String("entry", entry.Name),
			zap.String("origin", string(origin)))
		return
	}

	rec, err := u.queue.Read(entry)
	if err != nil {
		var corrupt *queue.CorruptError
		if errors.As(err, &corrupt) {
			u.metrics.CorruptEntries.Inc()
			u.logger.Error("corrupt queue entry, quarantining",
				zap.String("entry", entry.Name), zap.Error(err))
			if qerr := u.queue.Quarantine(entry); qerr != nil {
				u.logger.Error("quarantine failed", zap.String("entry", entry.Name), zap.Error(qerr))
			}
			return
		}
		u.metrics.UploadFailures.WithLabelValues(metrics.ReasonRead).Inc()
		u.logger.Error("queue read failed, will retry next cycle",
			zap.String("entry", entry.Name), zap.Error(err))
		return
	}

	start := time.Now()
	if err := u.deliver(ctx, endpoint, rec); err != nil {
		reason := metrics.ReasonNetwork
		var derr *DeliveryError
		if errors.As(err, &derr) && derr.StatusCode != 0 {
			reason = metrics.ReasonStatus
		}
		u.metrics.UploadFailures.WithLabelValues(reason).Inc()
		u.logger.Warn("delivery failed, entry retained",
			zap.String("entry", entry.Name),
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return
	}
	u.metrics.DeliveryLatency.Observe(time.Since(start).Seconds())

	if err := u.queue.Remove(entry); err != nil {
		// The record was accepted; a failed remove means one duplicate
		// delivery next cycle, which at-least-once permits.
		u.logger.Error("remove after delivery failed",
			zap.String("entry", entry.Name), zap.Error(err))
		return
	}
	u.metrics.RecordsUploaded.WithLabelValues(string(origin)).Inc()
	u.logger.Info("record delivered",
		zap.String("entry", entry.Name),
		zap.String("device", rec.DeviceName),
		zap.String("endpoint", endpoint))
}

func (u *Uploader) deliver(ctx context.Context, endpoint string, rec models.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return &DeliveryError{Endpoint: endpoint, Err: err}
	}

	reqCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return &DeliveryError{Endpoint: endpoint, Err: err}
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &DeliveryError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}
	return nil
}

// sleepWithContext waits for d or cancellation; it reports false once
// ctx is done.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
