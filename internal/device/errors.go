package device

import "errors"

// Domain errors for the device package. Transport and device errors are
// surfaced to one caller as-is; the Connection itself retries
// reconnection internally per its backoff schedule.
var (
	ErrNotReady   = errors.New("device: connection not ready")
	ErrLinkLost   = errors.New("device: link lost")
	ErrTimeout    = errors.New("device: request timed out")
	ErrDeviceBusy = errors.New("device: port busy, queue full")
	ErrInvariant  = errors.New("device: invariant violation")
	ErrClosed     = errors.New("device: connection closed")
)
