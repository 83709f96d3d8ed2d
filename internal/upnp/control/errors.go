package control

import (
	"errors"
	"fmt"
)

// Domain errors for the control package.
var (
	// ErrUnknownArgument is returned when a value names an argument the
	// action does not declare.
	ErrUnknownArgument = errors.New("control: unknown argument")

	// ErrWrongDirection is returned when an input value is set as output
	// or the reverse.
	ErrWrongDirection = errors.New("control: wrong argument direction")
)

// ErrorCode is a UPnP control error code.
type ErrorCode int

// Standard UPnP control error codes.
const (
	InvalidAction                ErrorCode = 401
	InvalidArgs                  ErrorCode = 402
	OutOfSync                    ErrorCode = 403
	ActionFailed                 ErrorCode = 501
	ArgumentValueInvalid         ErrorCode = 600
	ArgumentValueOutOfRange      ErrorCode = 601
	OptionalActionNotImplemented ErrorCode = 602
	OutOfMemory                  ErrorCode = 603
	HumanInterventionRequired    ErrorCode = 604
	StringArgumentTooLong        ErrorCode = 605
	ActionNotAuthorized          ErrorCode = 606
	SignatureFailure             ErrorCode = 607
	SignatureMissing             ErrorCode = 608
	NotEncrypted                 ErrorCode = 609
	InvalidSequence              ErrorCode = 610
	InvalidControlURL            ErrorCode = 611
	NoSuchSession                ErrorCode = 612
)

var descriptions = map[ErrorCode]string{
	InvalidAction:                "Invalid Action",
	InvalidArgs:                  "Invalid Args",
	OutOfSync:                    "Out of Sync",
	ActionFailed:                 "Action Failed",
	ArgumentValueInvalid:         "Argument Value Invalid",
	ArgumentValueOutOfRange:      "Argument Value Out of Range",
	OptionalActionNotImplemented: "Optional Action Not Implemented",
	OutOfMemory:                  "Out of Memory",
	HumanInterventionRequired:    "Human Intervention Required",
	StringArgumentTooLong:        "String Argument Too Long",
	ActionNotAuthorized:          "Action not authorized",
	SignatureFailure:             "Signature failure",
	SignatureMissing:             "Signature missing",
	NotEncrypted:                 "Not encrypted",
	InvalidSequence:              "Invalid sequence",
	InvalidControlURL:            "Invalid control URL",
	NoSuchSession:                "No such session",
}

// Description returns the standard description, or "Unknown Error" for a
// custom code.
func (c ErrorCode) Description() string {
	if d, ok := descriptions[c]; ok {
		return d
	}
	return "Unknown Error"
}

// IsStandard reports whether c is in the standard table.
func (c ErrorCode) IsStandard() bool {
	_, ok := descriptions[c]
	return ok
}

// ActionError is a failed invocation as reported on the wire.
type ActionError struct {
	Code        int
	Description string
	Err         error // Local cause, never transmitted
}

// NewActionError returns an error with an explicit description.
func NewActionError(code ErrorCode, description string) *ActionError {
	return &ActionError{Code: int(code), Description: description}
}

// Errorf returns an error whose description is the standard text of code
// followed by a formatted detail.
func Errorf(code ErrorCode, format string, args ...any) *ActionError {
	return &ActionError{
		Code:        int(code),
		Description: code.Description() + ". " + fmt.Sprintf(format, args...),
	}
}

// Wrap returns an error with the standard description of code and a
// local cause.
func Wrap(code ErrorCode, err error) *ActionError {
	return &ActionError{Code: int(code), Description: code.Description() + ". " + err.Error(), Err: err}
}

// FromError converts err to an ActionError. Errors that already carry an
// ActionError keep it; anything else becomes fallback.
func FromError(err error, fallback ErrorCode) *ActionError {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae
	}
	return Wrap(fallback, err)
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("upnp error %d: %s", e.Code, e.Description)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the numeric code as an ErrorCode.
func (e *ActionError) ErrorCode() ErrorCode {
	return ErrorCode(e.Code)
}
