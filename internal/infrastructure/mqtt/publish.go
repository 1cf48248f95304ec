package mqtt

import (
	"fmt"
)

// maxPayloadSize bounds a single publish; press outcomes and health
// snapshots are small JSON objects, so anything past this points to a
// bug upstream rather than a payload MQTT should carry.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends payload to topic at the given QoS. retained controls
// whether the broker keeps it for new subscribers — irfleet sets that
// for slot-health snapshots (Topics.SlotHealth) but not for one-shot
// press outcomes (Topics.PressOutcome).
//
// Example:
//
//	topic := mqtt.Topics{}.PressOutcome(12)
//	err := client.Publish(topic, []byte(`{"status":"ok"}`), 1, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishString publishes a string payload; equivalent to
// Publish(topic, []byte(payload), qos, retained).
func (c *Client) PublishString(topic string, payload string, qos byte, retained bool) error {
	return c.Publish(topic, []byte(payload), qos, retained)
}

// PublishRetained publishes payload at the client's configured
// default QoS with the retained flag set, for topics a new subscriber
// should see the current value of immediately rather than only future
// updates.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
