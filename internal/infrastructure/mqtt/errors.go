package mqtt

import "errors"

var (
	// ErrConnectionFailed is returned by Connect when the broker refuses
	// the client or does not answer in time.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected is returned while the broker is unreachable; the
	// bridge logs the state update as lost and carries on.
	ErrNotConnected = errors.New("mqtt: client not connected")

	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
	ErrInvalidQoS   = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")
)
