package collector

import (
	"context"
	"errors"
	"net"
	"strings"

	"go.uber.org/zap"

	"github.com/devpulse/internal/metrics"
	"github.com/devpulse/internal/models"
	"github.com/devpulse/internal/queue"
)

// UDPListener receives temperature datagrams from sensor devices and
// enqueues a sensor record per reading. Unrecognized datagrams are
// logged and dropped.
type UDPListener struct {
	addr       string
	deviceName string
	queue      queue.Queue
	logger     *zap.Logger
	metrics    *metrics.Pipeline
}

func NewUDPListener(addr, deviceName string, q queue.Queue, logger *zap.Logger, m *metrics.Pipeline) *UDPListener {
	return &UDPListener{
		addr:       addr,
		deviceName: deviceName,
		queue:      q,
		logger:     logger,
		metrics:    m,
	}
}

// Run listens until ctx is cancelled. Cancellation closes the socket,
// which unblocks the read loop.
func (l *UDPListener) Run(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", l.addr)
	if err != nil {
		return err
	}
	return l.serve(ctx, conn)
}

func (l *UDPListener) serve(ctx context.Context, conn net.PacketConn) error {
	l.logger.Info("udp sensor listener started", zap.String("addr", conn.LocalAddr().String()))

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 1024)
	for {
		n, remote, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				l.logger.Info("udp sensor listener stopped")
				return nil
			}
			l.logger.Error("udp read failed", zap.Error(err))
			continue
		}

		line := strings.TrimSpace(string(buf[:n]))
		temp, ok := parseTemperature(line)
		if !ok {
			l.logger.Warn("unrecognized sensor datagram",
				zap.String("from", remote.String()),
				zap.String("payload", line))
			continue
		}
		enqueue(l.queue, models.NewSensorRecord(l.deviceName, temp), l.logger, l.metrics)
	}
}
