// Package influxdb provides InfluxDB connectivity for Gray Logic Radio.
//
// It wraps the official influxdb-client-go v2 library with patterns for
// connection management, telemetry writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Transmitter PA temperature readings
//   - Per-channel enabled/frequency state
//   - Watchdog health and connection edges
//   - Accumulated on-air time
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "grayradio",
//	    Bucket: "telemetry",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Write telemetry
//	client.WriteTemperature(42.5)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This reduces network overhead for high-frequency telemetry data.
package influxdb
