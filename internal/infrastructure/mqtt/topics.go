package mqtt

import "fmt"

// Topic prefixes for the flat irfleet MQTT scheme: irfleet/{category}/{slot}.
const (
	// TopicPrefixPress is the base for press-outcome topics.
	TopicPrefixPress = "irfleet/press"

	// TopicPrefixHealth is the base for slot health-state topics.
	TopicPrefixHealth = "irfleet/health"

	// TopicPrefixSystem is the base for daemon-wide system topics.
	TopicPrefixSystem = "irfleet/system"
)

// Topics provides builders for irfleet MQTT topics.
//
//	topics := mqtt.Topics{}
//	outcomeTopic := topics.PressOutcome(3)
//	// Returns: "irfleet/press/3"
type Topics struct{}

// PressOutcome returns the fire-once topic a slot's press/hold/stop outcome
// is published to.
//
// Example: irfleet/press/3
func (Topics) PressOutcome(slot int) string {
	return fmt.Sprintf("%s/%d", TopicPrefixPress, slot)
}

// SlotHealth returns the retained topic a slot's health-state transitions
// are published to.
//
// Example: irfleet/health/3
func (Topics) SlotHealth(slot int) string {
	return fmt.Sprintf("%s/%d", TopicPrefixHealth, slot)
}

// SystemStatus returns the daemon-wide online/offline status topic, used
// for the Last Will and Testament.
//
// Example: irfleet/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllPressOutcomes returns a pattern matching every slot's press-outcome topic.
//
// Pattern: irfleet/press/+
func (Topics) AllPressOutcomes() string {
	return fmt.Sprintf("%s/+", TopicPrefixPress)
}

// AllSlotHealth returns a pattern matching every slot's health-state topic.
//
// Pattern: irfleet/health/+
func (Topics) AllSlotHealth() string {
	return fmt.Sprintf("%s/+", TopicPrefixHealth)
}
