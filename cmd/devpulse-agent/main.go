// devpulse-agent runs the producer side of the pipeline: the enabled
// collectors write records into the durable queue and the uploader
// drains it to the ingestion endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/devpulse/internal/collector"
	"github.com/devpulse/internal/config"
	"github.com/devpulse/internal/logging"
	"github.com/devpulse/internal/metrics"
	"github.com/devpulse/internal/models"
	"github.com/devpulse/internal/mqttclient"
	"github.com/devpulse/internal/queue"
	"github.com/devpulse/internal/uploader"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to agent configuration file")
	flag.Parse()

	cfg, err := config.LoadAgent(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		log.Fatalf("setup logging: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("agent failed", zap.Error(err))
	}
}

func run(cfg *config.Agent, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	q, err := queue.OpenDir(cfg.Queue.Dir)
	if err != nil {
		return err
	}
	logger.Info("queue opened", zap.String("dir", q.Path()))

	registry := prometheus.NewRegistry()
	pipeline := metrics.NewPipeline(registry)

	up := uploader.New(q, uploader.Config{
		Endpoints: map[models.Origin]string{
			models.OriginPC:     cfg.Uploader.PCEndpoint,
			models.OriginSensor: cfg.Uploader.SensorEndpoint,
		},
		Interval: cfg.Uploader.Interval(),
		Timeout:  cfg.Uploader.Timeout(),
	}, logger.Named("uploader"), pipeline)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return up.Run(gctx)
	})

	if cfg.PC.Enabled {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown-host"
		}
		deviceName := fmt.Sprintf("%s-%s", cfg.PC.DeviceNamePrefix, hostname)
		sampler := collector.NewPCSampler(deviceName, cfg.PC.Interval(), q, logger.Named("pc"), pipeline)
		g.Go(func() error {
			return sampler.Run(gctx)
		})
	}

	if cfg.Sensor.UDPListenAddr != "" {
		udp := collector.NewUDPListener(cfg.Sensor.UDPListenAddr, cfg.Sensor.DeviceName, q, logger.Named("udp"), pipeline)
		g.Go(func() error {
			return udp.Run(gctx)
		})
	}

	if cfg.Sensor.SerialPort != "" {
		sr := collector.NewSerialReader(cfg.Sensor.SerialPort, cfg.Sensor.SerialBaud, cfg.Sensor.DeviceName, q, logger.Named("serial"), pipeline)
		g.Go(func() error {
			return sr.Run(gctx)
		})
	}

	if cfg.Sensor.MQTTBroker != "" {
		mqttc, err := mqttclient.New(mqttclient.Options{
			BrokerURL: cfg.Sensor.MQTTBroker,
			ClientID:  fmt.Sprintf("devpulse-agent-%d", time.Now().UnixNano()),
		})
		if err != nil {
			return err
		}
		defer mqttc.Close()
		src := collector.NewMQTTSource(mqttc, cfg.Sensor.MQTTTopic, cfg.Sensor.DeviceName, q, logger.Named("mqtt"), pipeline)
		g.Go(func() error {
			return src.Run(gctx)
		})
	}

	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics.Addr, registry, logger)
		})
	}

	logger.Info("agent started")
	return g.Wait()
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint started", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
