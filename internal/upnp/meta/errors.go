package meta

import "errors"

// Domain errors for the meta package.
var (
	// ErrAlreadyBound is returned when a node that already has an owner is
	// passed to a second owning constructor.
	ErrAlreadyBound = errors.New("meta: already bound")

	// ErrInvalidIdentifier is returned when a service type, device type,
	// service ID or UDN cannot be parsed.
	ErrInvalidIdentifier = errors.New("meta: invalid identifier")

	// ErrInvalidService is returned when a service fails validation after
	// invalid actions have been dropped.
	ErrInvalidService = errors.New("meta: invalid service")

	// ErrInvalidDevice is returned when a device fails validation after
	// invalid icons and actions have been dropped.
	ErrInvalidDevice = errors.New("meta: invalid device")

	// ErrUnknownResource is returned when a path does not name a resource
	// of a known service.
	ErrUnknownResource = errors.New("meta: unknown resource")
)
