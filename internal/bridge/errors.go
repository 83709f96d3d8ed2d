package bridge

import "errors"

var (
	// ErrInvalidTopic is returned for a message on a topic that is not a
	// command topic.
	ErrInvalidTopic = errors.New("bridge: invalid command topic")

	// ErrInvalidCommand is returned when a command payload cannot be decoded.
	ErrInvalidCommand = errors.New("bridge: invalid command payload")

	// ErrUnboundService is returned for a received event whose service is
	// not attached to a device.
	ErrUnboundService = errors.New("bridge: event service has no device")
)
