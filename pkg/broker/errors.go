package broker

import "errors"

// Error taxonomy for broker-facing operations. Connection errors are fatal
// once the bounded connect retry is exhausted; publish errors are transient
// and retried by callers; handler resolution errors are configuration
// defects and never retried.
var (
	// ErrNotInitialized is returned by Publish when no open channel exists.
	ErrNotInitialized = errors.New("broker: publisher not initialized")

	// ErrConnectFailed is returned by Initialize once the connect retry
	// ceiling is exhausted.
	ErrConnectFailed = errors.New("broker: connection to broker failed")

	// ErrInvalidArgument is returned by PublishText when the routing key or
	// payload is blank.
	ErrInvalidArgument = errors.New("broker: routing key and payload must not be blank")

	// ErrHandlerResolution indicates the consumer's handler factory failed.
	// This is a deployment defect, not a transient fault: the message is
	// dead-lettered without exhausting the normal retry attempts.
	ErrHandlerResolution = errors.New("broker: message handler could not be resolved")
)
