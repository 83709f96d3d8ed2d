package mqtt

import "fmt"

// Topic prefixes for the upnpd MQTT tree.
//
// Service topics use the flat scheme: upnp/{category}/{udn}/{service_id}
// where service_id is the unqualified ID (e.g. "SwitchPower").
const (
	// TopicPrefix is the base for all service topics.
	TopicPrefix = "upnp"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "upnp/system"
)

// Topics provides builders for upnpd MQTT topics.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.State("2fac1234-31f8-11b4-a222-08002b34c003", "SwitchPower")
//	// Returns: "upnp/state/2fac1234-31f8-11b4-a222-08002b34c003/SwitchPower"
type Topics struct{}

// =============================================================================
// Service Topics
// =============================================================================

// State returns the topic for evented state changes of a local service.
//
// Example: upnp/state/2fac1234-.../SwitchPower
func (Topics) State(udn, serviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, udn, serviceID)
}

// Command returns the topic for action commands to a local service.
//
// Example: upnp/command/2fac1234-.../SwitchPower
func (Topics) Command(udn, serviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, udn, serviceID)
}

// Ack returns the topic for command acknowledgements of a local service.
//
// Example: upnp/ack/2fac1234-.../SwitchPower
func (Topics) Ack(udn, serviceID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, udn, serviceID)
}

// Received returns the topic for events received from a remote service.
//
// Example: upnp/received/4d696e69-.../ContentDirectory
func (Topics) Received(udn, serviceID string) string {
	return fmt.Sprintf("%s/received/%s/%s", TopicPrefix, udn, serviceID)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic.
//
// Example: upnp/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllStates returns a pattern matching all state changes.
//
// Pattern: upnp/state/+/+
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefix)
}

// AllCommands returns a pattern matching all action commands.
//
// Pattern: upnp/command/+/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/+/+", TopicPrefix)
}

// AllAcks returns a pattern matching all command acknowledgements.
//
// Pattern: upnp/ack/+/+
func (Topics) AllAcks() string {
	return fmt.Sprintf("%s/ack/+/+", TopicPrefix)
}

// AllTopics returns a pattern matching all upnpd topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: upnp/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
