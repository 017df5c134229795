package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Origin classifies the source of a Record and decides which ingestion
// endpoint it is routed to. Queue entry names embed the origin, so
// routing never requires parsing an entry's contents.
type Origin string

const (
	OriginPC     Origin = "pc"
	OriginSensor Origin = "esp32"
)

// entrySuffix is the file extension every queue entry carries.
const entrySuffix = ".json"

// FilePrefix returns the queue entry name prefix for this origin,
// e.g. "pc_metrics_".
func (o Origin) FilePrefix() string {
	return string(o) + "_metrics_"
}

// UnknownOriginError reports a queue entry name that matches no known
// origin pattern. Such an entry is an operator problem (a stray file or
// a misconfigured producer), not something to retry or delete.
type UnknownOriginError struct {
	Name string
}

func (e *UnknownOriginError) Error() string {
	return fmt.Sprintf("entry %q matches no known origin", e.Name)
}

// ParseOrigin classifies a queue entry name. It accepts both the
// current `<origin>_metrics_<ts>_<seq>.json` form and the legacy
// `<origin>_metrics_<ts>.json` form written by older producers.
func ParseOrigin(entryName string) (Origin, error) {
	if !strings.HasSuffix(entryName, entrySuffix) {
		return "", &UnknownOriginError{Name: entryName}
	}
	switch {
	case strings.HasPrefix(entryName, OriginPC.FilePrefix()):
		return OriginPC, nil
	case strings.HasPrefix(entryName, OriginSensor.FilePrefix()):
		return OriginSensor, nil
	}
	return "", &UnknownOriginError{Name: entryName}
}

// Record is one immutable metric observation awaiting delivery. The
// Fields payload is opaque to the queue and the uploader: they route by
// Origin and never look inside.
//
// On the wire a Record is a flat JSON object: device_name, timestamp,
// and one key per field, matching what the ingestion endpoints expect.
type Record struct {
	Origin     Origin
	DeviceName string
	Timestamp  int64
	Fields     map[string]float64
}

// NewPCRecord builds a system-resource observation stamped with the
// current time.
func NewPCRecord(deviceName string, numThreads, numProcesses int, ramUsageMB float64) Record {
	return Record{
		Origin:     OriginPC,
		DeviceName: deviceName,
		Timestamp:  time.Now().Unix(),
		Fields: map[string]float64{
			"num_threads":   float64(numThreads),
			"num_processes": float64(numProcesses),
			"ram_usage_mb":  ramUsageMB,
		},
	}
}

// NewSensorRecord builds a temperature observation stamped with the
// current time.
func NewSensorRecord(deviceName string, temperature float64) Record {
	return Record{
		Origin:     OriginSensor,
		DeviceName: deviceName,
		Timestamp:  time.Now().Unix(),
		Fields: map[string]float64{
			"temperature": temperature,
		},
	}
}

// MarshalJSON flattens the record into a single JSON object. Origin is
// deliberately absent: it lives in the queue entry name.
func (r Record) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(r.Fields)+2)
	obj["device_name"] = r.DeviceName
	obj["timestamp"] = r.Timestamp
	for k, v := range r.Fields {
		obj[k] = v
	}
	return json.Marshal(obj)
}

// UnmarshalJSON reads the flat wire form back. Every numeric key other
// than timestamp becomes a field; non-numeric extras are dropped.
func (r *Record) UnmarshalJSON(data []byte) error {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.Fields = make(map[string]float64)
	for k, v := range obj {
		switch k {
		case "device_name":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("device_name is not a string")
			}
			r.DeviceName = s
		case "timestamp":
			n, ok := v.(float64)
			if !ok {
				return fmt.Errorf("timestamp is not a number")
			}
			r.Timestamp = int64(n)
		default:
			if n, ok := v.(float64); ok {
				r.Fields[k] = n
			}
		}
	}
	return nil
}

// Validate checks the invariants every enqueued record must hold.
func (r Record) Validate() error {
	if r.Origin != OriginPC && r.Origin != OriginSensor {
		return fmt.Errorf("invalid origin %q", r.Origin)
	}
	if r.DeviceName == "" {
		return fmt.Errorf("device_name is empty")
	}
	if r.Timestamp <= 0 {
		return fmt.Errorf("timestamp %d is not positive", r.Timestamp)
	}
	return nil
}
