// Package server is the ingestion endpoint: it validates incoming
// metric payloads, persists them, and feeds the live dashboard hub.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/devpulse/internal/models"
	"github.com/devpulse/internal/store"
)

// Server handles the ingestion HTTP API:
//
//	POST /metrics        PC snapshots
//	POST /esp32metrics   sensor readings
//	GET  /metrics        recent snapshots (device_name, limit params)
//	GET  /esp32metrics   recent readings
//	GET  /ws             live dashboard feed
//	GET  /healthz        liveness
//	GET  /metrics/prom   prometheus
type Server struct {
	store    *store.Store
	hub      *Hub
	logger   *zap.Logger
	mux      *http.ServeMux
	accepted *prometheus.CounterVec
	rejected prometheus.Counter
}

func New(st *store.Store, hub *Hub, logger *zap.Logger, reg *prometheus.Registry) *Server {
	s := &Server{
		store:  st,
		hub:    hub,
		logger: logger,
		mux:    http.NewServeMux(),
		accepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devpulse_server_records_accepted_total",
			Help: "Records validated, persisted, and acknowledged with 201.",
		}, []string{"origin"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devpulse_server_records_rejected_total",
			Help: "Requests rejected for malformed or incomplete payloads.",
		}),
	}
	reg.MustRegister(s.accepted, s.rejected)

	s.mux.HandleFunc("POST /metrics", s.handlePostPCMetrics)
	s.mux.HandleFunc("GET /metrics", s.handleGetPCMetrics)
	s.mux.HandleFunc("POST /esp32metrics", s.handlePostSensorMetrics)
	s.mux.HandleFunc("GET /esp32metrics", s.handleGetSensorMetrics)
	s.mux.HandleFunc("GET /ws", s.hub.ServeWS)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics/prom", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) handlePostPCMetrics(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r, "device_name", "num_threads", "num_processes", "ram_usage_mb")
	if err != nil {
		s.reject(w, err)
		return
	}

	snap := store.Snapshot{
		DeviceName:   payload.device,
		Timestamp:    payload.timestamp,
		NumThreads:   int64(payload.fields["num_threads"]),
		NumProcesses: int64(payload.fields["num_processes"]),
		RAMUsageMB:   payload.fields["ram_usage_mb"],
	}
	if err := s.store.InsertSnapshot(r.Context(), &snap); err != nil {
		s.logger.Error("persist snapshot failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status": "error", "message": "failed to persist metrics",
		})
		return
	}

	s.accepted.WithLabelValues(string(models.OriginPC)).Inc()
	s.hub.Broadcast(Event{Origin: models.OriginPC, ReceivedAt: time.Now(), Payload: snap})
	s.logger.Info("metrics recorded", zap.String("device", snap.DeviceName))
	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "success", "message": "Metrics recorded", "snapshot": snap,
	})
}

func (s *Server) handlePostSensorMetrics(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r, "device_name", "temperature")
	if err != nil {
		s.reject(w, err)
		return
	}

	reading := store.Reading{
		DeviceName:  payload.device,
		Timestamp:   payload.timestamp,
		Temperature: payload.fields["temperature"],
	}
	if err := s.store.InsertReading(r.Context(), &reading); err != nil {
		s.logger.Error("persist reading failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status": "error", "message": "failed to persist metrics",
		})
		return
	}

	s.accepted.WithLabelValues(string(models.OriginSensor)).Inc()
	s.hub.Broadcast(Event{Origin: models.OriginSensor, ReceivedAt: time.Now(), Payload: reading})
	s.logger.Info("sensor reading recorded",
		zap.String("device", reading.DeviceName),
		zap.Float64("temperature", reading.Temperature))
	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "success", "message": "Metrics recorded", "reading": reading,
	})
}

func (s *Server) handleGetPCMetrics(w http.ResponseWriter, r *http.Request) {
	device, limit := queryParams(r)
	snapshots, err := s.store.RecentSnapshots(r.Context(), device, limit)
	if err != nil {
		s.logger.Error("query snapshots failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status": "error", "message": "failed to query metrics",
		})
		return
	}
	if snapshots == nil {
		snapshots = []store.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "metrics": snapshots})
}

func (s *Server) handleGetSensorMetrics(w http.ResponseWriter, r *http.Request) {
	device, limit := queryParams(r)
	readings, err := s.store.RecentReadings(r.Context(), device, limit)
	if err != nil {
		s.logger.Error("query readings failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status": "error", "message": "failed to query metrics",
		})
		return
	}
	if readings == nil {
		readings = []store.Reading{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "metrics": readings})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) reject(w http.ResponseWriter, err error) {
	s.rejected.Inc()
	s.logger.Warn("payload rejected", zap.Error(err))
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"status": "error", "message": err.Error(),
	})
}

// ingestPayload is a validated incoming metrics body.
type ingestPayload struct {
	device    string
	timestamp int64
	fields    map[string]float64
}

// decodePayload parses the body and checks the required fields;
// device_name must be a non-empty string, everything else numeric. A
// missing timestamp defaults to arrival time (some devices have no
// clock).
func decodePayload(r *http.Request, required ...string) (ingestPayload, error) {
	var obj map[string]any
	if err := json.NewDecoder(r.Body).Decode(&obj); err != nil {
		return ingestPayload{}, fmt.Errorf("invalid JSON body")
	}

	for _, field := range required {
		if _, ok := obj[field]; !ok {
			return ingestPayload{}, fmt.Errorf("missing required field: %s", field)
		}
	}

	device, ok := obj["device_name"].(string)
	if !ok || device == "" {
		return ingestPayload{}, fmt.Errorf("device_name must be a non-empty string")
	}

	p := ingestPayload{device: device, fields: make(map[string]float64)}
	for k, v := range obj {
		if k == "device_name" || k == "timestamp" {
			continue
		}
		n, ok := v.(float64)
		if !ok {
			return ingestPayload{}, fmt.Errorf("field %s must be numeric", k)
		}
		p.fields[k] = n
	}

	if ts, ok := obj["timestamp"].(float64); ok {
		p.timestamp = int64(ts)
	} else {
		p.timestamp = time.Now().Unix()
	}
	return p, nil
}

func queryParams(r *http.Request) (device string, limit int) {
	device = r.URL.Query().Get("device_name")
	limit = 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	return device, limit
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
