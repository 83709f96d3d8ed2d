package datatype

import "errors"

// Domain errors for the datatype package.
var (
	// ErrUnknownType is returned when a datatype name is not a UDA built-in.
	ErrUnknownType = errors.New("datatype: unknown type")

	// ErrInvalidValue is returned when a string or Go value cannot be
	// represented by the datatype.
	ErrInvalidValue = errors.New("datatype: invalid value")
)
