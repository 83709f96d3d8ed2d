// Package gena converts state variable changes to and from GENA
// property-set bodies.
//
// The processors mirror the soap package: TreeProcessor parses with etree
// and requires a propertyset root, StreamProcessor scans forward for
// property elements, and RecoveringProcessor repairs the body once and
// falls back to whatever values it could read before failing.
//
// State variables are matched by exact name. Elements that name no state
// variable of the service are ignored.
package gena
