package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAgentAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
uploader:
  pc_metrics_endpoint: http://localhost:8080/metrics
  esp32_metrics_endpoint: http://localhost:8080/esp32metrics
`)
	cfg, err := LoadAgent(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Queue.Dir != "metrics_queue" {
		t.Errorf("queue dir = %q", cfg.Queue.Dir)
	}
	if cfg.Uploader.Interval() != 20*time.Second {
		t.Errorf("interval = %s", cfg.Uploader.Interval())
	}
	if cfg.Uploader.Timeout() != 5*time.Second {
		t.Errorf("timeout = %s", cfg.Uploader.Timeout())
	}
	if cfg.Sensor.DeviceName != "esp32_device" {
		t.Errorf("sensor device = %q", cfg.Sensor.DeviceName)
	}
	if cfg.Sensor.SerialBaud != 9600 {
		t.Errorf("serial baud = %d", cfg.Sensor.SerialBaud)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Encoding != "console" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
}

func TestLoadAgentOverrides(t *testing.T) {
	path := writeConfig(t, `
queue:
  dir: /var/lib/devpulse/queue
uploader:
  pc_metrics_endpoint: http://ingest:9000/metrics
  esp32_metrics_endpoint: http://ingest:9000/esp32metrics
  interval_seconds: 5
  timeout_seconds: 2
pc:
  enabled: true
  device_name_prefix: workstation
  interval_seconds: 10
logging:
  level: debug
  encoding: json
`)
	cfg, err := LoadAgent(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Queue.Dir != "/var/lib/devpulse/queue" {
		t.Errorf("queue dir = %q", cfg.Queue.Dir)
	}
	if cfg.Uploader.Interval() != 5*time.Second {
		t.Errorf("interval = %s", cfg.Uploader.Interval())
	}
	if !cfg.PC.Enabled || cfg.PC.DeviceNamePrefix != "workstation" {
		t.Errorf("pc config = %+v", cfg.PC)
	}
	if cfg.Logging.Encoding != "json" {
		t.Errorf("encoding = %q", cfg.Logging.Encoding)
	}
}

func TestLoadAgentRequiresEndpoints(t *testing.T) {
	path := writeConfig(t, `
uploader:
  pc_metrics_endpoint: http://localhost:8080/metrics
`)
	if _, err := LoadAgent(path); err == nil {
		t.Fatal("expected error for missing sensor endpoint")
	}
}

func TestLoadAgentRejectsBadEncoding(t *testing.T) {
	path := writeConfig(t, `
uploader:
  pc_metrics_endpoint: http://localhost:8080/metrics
  esp32_metrics_endpoint: http://localhost:8080/esp32metrics
logging:
  encoding: xml
`)
	if _, err := LoadAgent(path); err == nil {
		t.Fatal("expected error for bad logging encoding")
	}
}

func TestLoadAgentMissingFile(t *testing.T) {
	if _, err := LoadAgent(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadServerAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)
	cfg, err := LoadServer(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.Database.Path != "devpulse.db" || cfg.Database.PoolSize != 4 {
		t.Errorf("database = %+v", cfg.Database)
	}
}
