package collector

import (
	"context"
	"encoding/json"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/devpulse/internal/metrics"
	"github.com/devpulse/internal/models"
	"github.com/devpulse/internal/mqttclient"
	"github.com/devpulse/internal/queue"
)

// mqttReading is the JSON payload sensor devices publish over MQTT.
type mqttReading struct {
	DeviceName  string   `json:"device_name"`
	Temperature *float64 `json:"temperature"`
}

// MQTTSource subscribes to a sensor topic and enqueues a sensor record
// per published reading.
type MQTTSource struct {
	client     *mqttclient.Client
	topic      string
	deviceName string
	queue      queue.Queue
	logger     *zap.Logger
	metrics    *metrics.Pipeline
}

func NewMQTTSource(client *mqttclient.Client, topic, deviceName string, q queue.Queue, logger *zap.Logger, m *metrics.Pipeline) *MQTTSource {
	return &MQTTSource{
		client:     client,
		topic:      topic,
		deviceName: deviceName,
		queue:      q,
		logger:     logger,
		metrics:    m,
	}
}

// Run subscribes and then blocks until ctx is cancelled; the paho
// client delivers messages on its own goroutines.
func (s *MQTTSource) Run(ctx context.Context) error {
	if err := s.client.Subscribe(s.topic, 0, s.handle); err != nil {
		return err
	}
	s.logger.Info("mqtt sensor source started", zap.String("topic", s.topic))

	<-ctx.Done()
	s.logger.Info("mqtt sensor source stopped")
	return nil
}

func (s *MQTTSource) handle(_ mqtt.Client, msg mqtt.Message) {
	var reading mqttReading
	if err := json.Unmarshal(msg.Payload(), &reading); err != nil {
		s.logger.Warn("unparseable mqtt sensor payload",
			zap.String("topic", msg.Topic()),
			zap.Error(err))
		return
	}
	if reading.Temperature == nil {
		s.logger.Warn("mqtt sensor payload missing temperature",
			zap.String("topic", msg.Topic()))
		return
	}
	device := reading.DeviceName
	if device == "" {
		device = s.deviceName
	}
	enqueue(s.queue, models.NewSensorRecord(device, *reading.Temperature), s.logger, s.metrics)
}
