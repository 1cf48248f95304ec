// Package metrics provides InfluxDB connectivity for the fleet daemon's
// time-series telemetry.
//
// It wraps the official influxdb-client-go v2 library with non-blocking
// batched writes for two measurements:
//   - press_latency: per-press status and elapsed time
//   - connection_health: per-slot connection state transitions
//
// # Usage
//
//	cfg := config.MetricsConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "irfleet",
//	    Bucket: "metrics",
//	}
//
//	client, err := metrics.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Write operations are non-blocking; batch errors are delivered via a
// callback set with SetOnError. Connection and health check errors are
// returned directly.
package metrics
