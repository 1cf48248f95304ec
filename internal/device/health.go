package device

import "time"

// HealthRecord is a snapshot of a connection's operational status.
type HealthRecord struct {
	State            State
	LastOKAt         time.Time
	ConsecutiveFails int
	LastErrorKind    error
	Model            Model
}

// healthCheckTimeout bounds how long a getversion,0 probe may take
// before the connection is considered unhealthy.
const healthCheckTimeout = 2 * time.Second
