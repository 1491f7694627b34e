package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/transmitter"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string             `json:"timestamp"`
	Version       string             `json:"version"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Runtime       RuntimeMetrics     `json:"runtime"`
	WebSocket     WSMetrics          `json:"websocket"`
	MQTT          MQTTMetrics        `json:"mqtt"`
	Transmitter   TransmitterMetrics `json:"transmitter"`
	Database      DatabaseMetrics    `json:"database"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// TransmitterMetrics contains the supervisor's operational counters.
type TransmitterMetrics struct {
	Connection        transmitter.ConnectionState `json:"connection"`
	Broadcast         transmitter.BroadcastState  `json:"broadcast"`
	Watchdog          transmitter.WatchdogState   `json:"watchdog"`
	HeartbeatAgeMs    int64                       `json:"heartbeat_age_ms"`
	PollTicks         uint64                      `json:"poll_ticks"`
	PollErrors        uint64                      `json:"poll_errors"`
	ConsecutiveErrors int32                       `json:"consecutive_errors"`
	ConnectionsLost   uint64                      `json:"connections_lost"`
	ReconnectAttempts uint64                      `json:"reconnect_attempts"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns comprehensive system metrics.
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
	}

	if s.hub != nil {
		metrics.WebSocket = WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		}
	}

	// MQTT metrics (if available)
	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{
			Connected: s.mqtt.IsConnected(),
		}
	}

	// Supervisor counters
	if s.supervisor != nil {
		stats := s.supervisor.Stats()
		metrics.Transmitter = TransmitterMetrics{
			Connection:        stats.Connection,
			Broadcast:         stats.Broadcast,
			Watchdog:          stats.Watchdog,
			HeartbeatAgeMs:    stats.HeartbeatAge.Milliseconds(),
			PollTicks:         stats.PollTicks,
			PollErrors:        stats.PollErrors,
			ConsecutiveErrors: stats.ConsecutiveErrors,
			ConnectionsLost:   stats.ConnectionsLost,
			ReconnectAttempts: stats.ReconnectAttempts,
		}
	}

	// Database stats (if available)
	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
