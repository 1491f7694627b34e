// Package tsdb provides time-series database connectivity for Gray Logic Radio.
//
// It writes to VictoriaMetrics using InfluxDB line protocol over HTTP and
// queries using PromQL. Zero external dependencies — uses only net/http.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Power amplifier temperature readings
//   - Per-channel enabled/frequency state
//   - Watchdog health and transmitter connection transitions
//   - Accumulated on-air time
//
// # Usage
//
//	cfg := config.TSDBConfig{
//	    Enabled:       true,
//	    URL:           "http://localhost:8428",
//	    BatchSize:     1000,
//	    FlushInterval: 1,
//	}
//
//	client, err := tsdb.Connect(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Write transmitter telemetry
//	client.WriteTemperature(42.5)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Writes are batched internally and flushed on size threshold or timer.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are reported via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// Batch flush is a single HTTP POST with newline-delimited line protocol.
// VictoriaMetrics processes these with minimal overhead.
package tsdb
