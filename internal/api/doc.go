// Package api implements the HTTP surface of upnpd.
//
// This package provides:
//   - SOAP control endpoints for every hosted service (POST .../action)
//   - GENA callback endpoints accepting event notifications (NOTIFY .../cb)
//   - A JSON API for hosted devices, service state, the event log and health
//   - Middleware stack (request ID, logging, recovery, body size limit)
//
// # Resource Paths
//
// Service resources follow meta.Namespace:
//
//	{prefix}/dev/{udn}/svc/{namespace}/{id}/action
//	{prefix}/dev/{udn}/svc/{namespace}/{id}/event
//	{prefix}/dev/{udn}/svc/{namespace}/{id}/cb
//
// Event subscription (SUBSCRIBE/UNSUBSCRIBE) is not served.
//
// # JSON API
//
//	GET  /api/v1/health
//	GET  /api/v1/metrics
//	GET  /api/v1/devices
//	GET  /api/v1/devices/{udn}
//	GET  /api/v1/devices/{udn}/services/{serviceID}/state
//	PUT  /api/v1/devices/{udn}/services/{serviceID}/state
//	GET  /api/v1/events
//	GET  /api/v1/invocations
//
// # Graceful Degradation
//
// The event log, MQTT and metrics are optional. Without an event log the
// history endpoints answer 503 and control requests are not recorded.
package api
