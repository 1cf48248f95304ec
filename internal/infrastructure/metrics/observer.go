package metrics

import "github.com/hollowgate/irfleet-core/internal/dispatcher"

// Observer writes dispatcher.Event telemetry into InfluxDB. It
// satisfies dispatcher.Observer.
type Observer struct {
	client *Client
}

// NewObserver wraps a connected Client as a dispatcher.Observer.
func NewObserver(client *Client) *Observer {
	return &Observer{client: client}
}

// Observe implements dispatcher.Observer.
func (o *Observer) Observe(ev dispatcher.Event) {
	switch ev.Kind {
	case dispatcher.EventPressOutcome:
		o.client.WritePressLatency(ev.Slot, ev.Outcome, ev.ElapsedMs)
	case dispatcher.EventHealthTransition:
		o.client.WriteConnectionHealth(ev.Slot, ev.Outcome)
	}
}
