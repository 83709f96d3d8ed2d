// Package bridge exposes the local UPnP services of a localsvc.Host over
// MQTT.
//
// # Topics
//
//	upnp/command/{udn}/{service_id}   CommandMessage, subscribed
//	upnp/ack/{udn}/{service_id}       AckMessage, QoS 1
//	upnp/state/{udn}/{service_id}     StateMessage, QoS 1, retained
//
// The service ID is the unqualified ID, e.g. "SwitchPower" for
// urn:upnp-org:serviceId:SwitchPower. The UDN is given without the
// "uuid:" prefix.
//
// Command arguments and state values travel as UPnP wire text, so
// {"NewTargetValue": "1"} sets a boolean argument. A failed command is
// acknowledged with the UPnP error code of the failure: 401 for unknown
// services or actions, 402 for unknown arguments, 600 for values that do
// not parse, and whatever the executor reported otherwise.
package bridge
