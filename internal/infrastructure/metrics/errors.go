package metrics

import "errors"

// Sentinel errors for metrics operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, metrics.ErrNotConnected) {
//	    // Handle disconnected state
//	}
var (
	// ErrNotConnected indicates the client is not connected to InfluxDB.
	ErrNotConnected = errors.New("metrics: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("metrics: connection failed")

	// ErrWriteFailed indicates a write operation failed.
	// Note: Most write errors are handled asynchronously via the error callback.
	ErrWriteFailed = errors.New("metrics: write failed")

	// ErrDisabled indicates metrics reporting is disabled in config.
	ErrDisabled = errors.New("metrics: disabled in configuration")
)
