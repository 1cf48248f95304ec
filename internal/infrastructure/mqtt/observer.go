package mqtt

import (
	"encoding/json"
	"time"

	"github.com/hollowgate/irfleet-core/internal/dispatcher"
)

// PressEvent is the payload shape published to a slot's press topic
// after a press, hold, or stop completes.
type PressEvent struct {
	Slot       int    `json:"slot"`
	DeviceName string `json:"device,omitempty"`
	KeyName    string `json:"key,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	ElapsedMs  int64  `json:"elapsed_ms"`
	At         string `json:"at"`
}

// HealthEvent is the retained payload published to a slot's health
// topic whenever its connection state changes.
type HealthEvent struct {
	Slot  int    `json:"slot"`
	State string `json:"state"`
	At    string `json:"at"`
}

// Observer publishes dispatcher.Event telemetry to the broker. A
// publish failure is logged, never returned — the fanout worker that
// calls Observe has nowhere to surface an error.
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
		o.publishPress(ev)
	case dispatcher.EventHealthTransition:
		o.publishHealth(ev)
	}
}

func (o *Observer) publishPress(ev dispatcher.Event) {
	var errMsg string
	if ev.Err != nil {
		errMsg = ev.Err.Error()
	}
	payload, err := json.Marshal(PressEvent{
		Slot:       ev.Slot,
		DeviceName: ev.DeviceName,
		KeyName:    ev.KeyName,
		Status:     ev.Outcome,
		Error:      errMsg,
		ElapsedMs:  ev.ElapsedMs,
		At:         ev.At.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		o.logError("marshal press event", err)
		return
	}
	topic := Topics{}.PressOutcome(ev.Slot)
	if err := o.client.Publish(topic, payload, byte(o.client.cfg.QoS), false); err != nil {
		o.logError("publish press event", err)
	}
}

func (o *Observer) publishHealth(ev dispatcher.Event) {
	payload, err := json.Marshal(HealthEvent{
		Slot:  ev.Slot,
		State: ev.Outcome,
		At:    ev.At.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		o.logError("marshal health event", err)
		return
	}
	topic := Topics{}.SlotHealth(ev.Slot)
	if err := o.client.PublishRetained(topic, payload); err != nil {
		o.logError("publish health event", err)
	}
}

func (o *Observer) logError(msg string, err error) {
	if logger := o.client.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}
