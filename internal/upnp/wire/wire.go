// Package wire holds what the SOAP and GENA processors share: the
// unsupported-data error, the processing strategy, and the forward-only
// token scanner used by the lenient readers.
package wire

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedData matches every *UnsupportedDataError.
var ErrUnsupportedData = errors.New("upnp: unsupported data")

// ErrUnknownStrategy is returned by ParseStrategy.
var ErrUnknownStrategy = errors.New("upnp: unknown processing strategy")

// UnsupportedDataError reports a body that could not be processed. It keeps
// the offending body for diagnostics.
type UnsupportedDataError struct {
	Message string
	Body    []byte
	Err     error
}

// Unsupported returns an UnsupportedDataError.
func Unsupported(message string, body []byte, err error) *UnsupportedDataError {
	return &UnsupportedDataError{Message: message, Body: body, Err: err}
}

func (e *UnsupportedDataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unsupported data: %s: %v", e.Message, e.Err)
	}
	return "unsupported data: " + e.Message
}

func (e *UnsupportedDataError) Unwrap() error {
	return e.Err
}

// Is reports a match against ErrUnsupportedData.
func (e *UnsupportedDataError) Is(target error) bool {
	return target == ErrUnsupportedData
}

// Strategy selects a processor implementation.
type Strategy string

// Processing strategies.
const (
	// Strict parses the whole document into a tree and checks structure.
	Strict Strategy = "strict"

	// Lenient scans forward for the elements it needs.
	Lenient Strategy = "lenient"

	// Recovering is Lenient plus one repair-and-retry pass.
	Recovering Strategy = "recovering"
)

// ParseStrategy resolves a configured strategy name, ignoring case.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case Strict, Lenient, Recovering:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}
