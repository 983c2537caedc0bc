package mqtt

import "errors"

// Sentinel errors for MQTT operations. Callers match with errors.Is; the
// bridge treats ErrNotConnected as a signal to queue and retry rather
// than fail the poll cycle.
var (
	ErrNotConnected      = errors.New("mqtt: client not connected")
	ErrConnectionFailed  = errors.New("mqtt: connection failed")
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS covers QoS values outside 0..2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic covers empty topic strings.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	ErrTimeout = errors.New("mqtt: operation timed out")
)
