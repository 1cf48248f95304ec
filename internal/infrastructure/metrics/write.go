package metrics

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePressLatency writes a single press-outcome measurement.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - slot: Logical slot the press was issued against
//   - status: "ok" or "error"
//   - elapsedMs: Time from dispatch to completion, in milliseconds
func (c *Client) WritePressLatency(slot int, status string, elapsedMs int64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"press_latency",
		map[string]string{
			"status": status,
		},
		map[string]interface{}{
			"slot":       slot,
			"elapsed_ms": elapsedMs,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteConnectionHealth writes a slot health-state transition.
//
// Parameters:
//   - slot: Logical slot whose connection state changed
//   - state: The connection state name (e.g. "ready", "faulted")
func (c *Client) WriteConnectionHealth(slot int, state string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"connection_health",
		map[string]string{
			"state": state,
		},
		map[string]interface{}{
			"slot": slot,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
