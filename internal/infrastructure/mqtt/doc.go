// Package mqtt publishes the fleet daemon's press outcomes and slot
// health transitions to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The daemon publishes fire-once press-outcome events and retained
// slot health-state events; it never subscribes. Command intake lives
// outside this core entirely.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.PressOutcome(slot)
//	client.PublishString(topic, `{"status":"ok"}`, 1, false)
package mqtt
