package localsvc

import "errors"

// Domain errors for the localsvc package.
var (
	// ErrUnknownStateVariable is returned when a value names a state
	// variable the service does not declare.
	ErrUnknownStateVariable = errors.New("localsvc: unknown state variable")

	// ErrNotAllowed is returned when a value is outside the enumeration or
	// range of its state variable.
	ErrNotAllowed = errors.New("localsvc: value not allowed")

	// ErrForeignService is returned when an invocation targets a service the
	// executor or host does not own.
	ErrForeignService = errors.New("localsvc: service not hosted here")

	// ErrRemoteService is returned when an executor is created for a remote
	// service.
	ErrRemoteService = errors.New("localsvc: service is remote")
)
