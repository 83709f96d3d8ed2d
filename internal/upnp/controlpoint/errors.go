package controlpoint

import "errors"

// Domain errors for the controlpoint package.
var (
	// ErrNotRemote is returned when an invocation targets a service without
	// remote endpoints.
	ErrNotRemote = errors.New("controlpoint: service has no remote endpoints")

	// ErrRequestFailed is returned when the HTTP exchange itself fails.
	ErrRequestFailed = errors.New("controlpoint: request failed")

	// ErrUnexpectedStatus is returned when the peer answers with an HTTP
	// status that carries no usable SOAP body.
	ErrUnexpectedStatus = errors.New("controlpoint: unexpected HTTP status")

	// ErrResponseTooLarge is returned when a response body exceeds the
	// read limit.
	ErrResponseTooLarge = errors.New("controlpoint: response body too large")
)
