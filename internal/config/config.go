// Package config loads the YAML configuration for the devpulse
// daemons. Each daemon has one config struct; loading applies defaults
// and then validates, so a loaded config is always usable.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Agent configures the collector/uploader daemon.
type Agent struct {
	Queue    QueueConfig    `yaml:"queue"`
	Uploader UploaderConfig `yaml:"uploader"`
	PC       PCConfig       `yaml:"pc"`
	Sensor   SensorConfig   `yaml:"sensor"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type QueueConfig struct {
	Dir string `yaml:"dir"`
}

type UploaderConfig struct {
	PCEndpoint      string `yaml:"pc_metrics_endpoint"`
	SensorEndpoint  string `yaml:"esp32_metrics_endpoint"`
	IntervalSeconds int    `yaml:"interval_seconds"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

func (u UploaderConfig) Interval() time.Duration {
	return time.Duration(u.IntervalSeconds) * time.Second
}

func (u UploaderConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutSeconds) * time.Second
}

type PCConfig struct {
	Enabled          bool   `yaml:"enabled"`
	DeviceNamePrefix string `yaml:"device_name_prefix"`
	IntervalSeconds  int    `yaml:"interval_seconds"`
}

func (p PCConfig) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

// SensorConfig selects the sensor sources. A source is enabled by
// setting its address/port; any combination may run at once.
type SensorConfig struct {
	DeviceName    string `yaml:"device_name"`
	UDPListenAddr string `yaml:"udp_listen_addr"`
	SerialPort    string `yaml:"serial_port"`
	SerialBaud    int    `yaml:"serial_baud"`
	MQTTBroker    string `yaml:"mqtt_broker"`
	MQTTTopic     string `yaml:"mqtt_topic"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"` // "console" or "json"
}

// MetricsConfig enables the prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Server configures the ingestion daemon.
type Server struct {
	ListenAddr string        `yaml:"listen_addr"`
	Database   DatabaseConfig `yaml:"database"`
	Logging    LoggingConfig `yaml:"logging"`
}

type DatabaseConfig struct {
	Path     string `yaml:"path"`
	PoolSize int    `yaml:"pool_size"`
}

// LoadAgent reads, defaults, and validates an agent config file.
func LoadAgent(path string) (*Agent, error) {
	var cfg Agent
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadServer reads, defaults, and validates a server config file.
func LoadServer(path string) (*Server, error) {
	var cfg Server
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func loadYAML(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Agent) applyDefaults() {
	if c.Queue.Dir == "" {
		c.Queue.Dir = "metrics_queue"
	}
	if c.Uploader.IntervalSeconds == 0 {
		c.Uploader.IntervalSeconds = 20
	}
	if c.Uploader.TimeoutSeconds == 0 {
		c.Uploader.TimeoutSeconds = 5
	}
	if c.PC.DeviceNamePrefix == "" {
		c.PC.DeviceNamePrefix = "pc"
	}
	if c.PC.IntervalSeconds == 0 {
		c.PC.IntervalSeconds = 30
	}
	if c.Sensor.DeviceName == "" {
		c.Sensor.DeviceName = "esp32_device"
	}
	if c.Sensor.SerialBaud == 0 {
		c.Sensor.SerialBaud = 9600
	}
	if c.Sensor.MQTTTopic == "" {
		c.Sensor.MQTTTopic = "devpulse/sensors/temperature"
	}
	c.Logging.applyDefaults()
}

func (c *Agent) validate() error {
	if c.Uploader.PCEndpoint == "" {
		return fmt.Errorf("uploader.pc_metrics_endpoint is required")
	}
	if c.Uploader.SensorEndpoint == "" {
		return fmt.Errorf("uploader.esp32_metrics_endpoint is required")
	}
	if c.Uploader.IntervalSeconds < 0 || c.Uploader.TimeoutSeconds <= 0 {
		return fmt.Errorf("uploader intervals must be positive")
	}
	if c.PC.Enabled && c.PC.IntervalSeconds <= 0 {
		return fmt.Errorf("pc.interval_seconds must be positive")
	}
	return c.Logging.validate()
}

func (c *Server) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "devpulse.db"
	}
	if c.Database.PoolSize == 0 {
		c.Database.PoolSize = 4
	}
	c.Logging.applyDefaults()
}

func (c *Server) validate() error {
	if c.Database.PoolSize < 1 {
		return fmt.Errorf("database.pool_size must be at least 1")
	}
	return c.Logging.validate()
}

func (l *LoggingConfig) applyDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Encoding == "" {
		l.Encoding = "console"
	}
}

func (l LoggingConfig) validate() error {
	switch l.Encoding {
	case "console", "json":
	default:
		return fmt.Errorf("logging.encoding %q must be console or json", l.Encoding)
	}
	return nil
}
