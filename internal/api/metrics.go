package api

import (
	"database/sql"
	"net/http"
	"runtime"
	"time"
)

// DBStats exposes connection pool statistics.
type DBStats interface {
	Stats() sql.DBStats
	Size() (int64, error)
}

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	MQTT          *MQTTMetrics     `json:"mqtt,omitempty"`
	Services      ServiceMetrics   `json:"services"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// ServiceMetrics counts the hosted UPnP model.
type ServiceMetrics struct {
	Devices        int `json:"devices"`
	Services       int `json:"services"`
	Actions        int `json:"actions"`
	StateVariables int `json:"state_variables"`
}

// DatabaseMetrics describes the event log database.
type DatabaseMetrics struct {
	SizeBytes       int64 `json:"size_bytes"`
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns runtime and service statistics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Services: s.serviceMetrics(),
	}

	if s.mqtt != nil {
		metrics.MQTT = &MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
		if size, err := s.db.Size(); err == nil {
			metrics.Database.SizeBytes = size
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) serviceMetrics() ServiceMetrics {
	var m ServiceMetrics
	for _, root := range s.host.Devices() {
		m.Devices += len(root.AllDevices())
		for _, svc := range root.AllServices() {
			m.Services++
			m.Actions += len(svc.Actions())
			m.StateVariables += len(svc.StateVariables())
		}
	}
	return m
}
