package collector

import (
	"bufio"
	"context"
	"strings"

	"github.com/tarm/serial"
	"go.uber.org/zap"

	"github.com/devpulse/internal/metrics"
	"github.com/devpulse/internal/models"
	"github.com/devpulse/internal/queue"
)

// SerialReader reads temperature lines from a directly attached sensor
// board (the same line protocol the UDP path speaks) and enqueues a
// sensor record per reading.
type SerialReader struct {
	port       string
	baud       int
	deviceName string
	queue      queue.Queue
	logger     *zap.Logger
	metrics    *metrics.Pipeline
}

func NewSerialReader(port string, baud int, deviceName string, q queue.Queue, logger *zap.Logger, m *metrics.Pipeline) *SerialReader {
	return &SerialReader{
		port:       port,
		baud:       baud,
		deviceName: deviceName,
		queue:      q,
		logger:     logger,
		metrics:    m,
	}
}

// Run reads lines until the port errors out or ctx is cancelled.
// Cancellation closes the port, which unblocks the scanner.
func (r *SerialReader) Run(ctx context.Context) error {
	s, err := serial.OpenPort(&serial.Config{Name: r.port, Baud: r.baud})
	if err != nil {
		return err
	}
	r.logger.Info("serial sensor reader started",
		zap.String("port", r.port),
		zap.Int("baud", r.baud))

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	scanner := bufio.NewScanner(s)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		temp, ok := parseTemperature(line)
		if !ok {
			r.logger.Warn("unrecognized serial line", zap.String("line", line))
			continue
		}
		enqueue(r.queue, models.NewSensorRecord(r.deviceName, temp), r.logger, r.metrics)
	}

	if ctx.Err() != nil {
		r.logger.Info("serial sensor reader stopped")
		return nil
	}
	return scanner.Err()
}
