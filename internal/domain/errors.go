package domain

import "errors"

// Domain errors represent error conditions in the subcast domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("subcast: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("subcast: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("subcast: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("subcast: invalid configuration")

	// ErrNoSender is returned when a data request is issued before any sender
	// has requested a load.
	ErrNoSender = errors.New("subcast: no sender id")

	// ErrOutOfOrder is reported when a fragment is older than the last queued frame.
	ErrOutOfOrder = errors.New("subcast: fragment out of order")

	// ErrStaleFragment is reported when a caption arrives too far behind play time.
	ErrStaleFragment = errors.New("subcast: stale fragment")

	// ErrUnknownAction is returned by decoders for messages with an unrecognised action.
	ErrUnknownAction = errors.New("subcast: unknown action")

	// ErrUnsupportedSource is returned when an asset reference cannot be loaded.
	ErrUnsupportedSource = errors.New("subcast: unsupported asset source")

	// ErrImageTooLarge is returned when an asset's dimensions exceed the decode limit.
	ErrImageTooLarge = errors.New("subcast: image too large")

	// ErrUnknownSender is returned when sending to a sender that is not connected.
	ErrUnknownSender = errors.New("subcast: unknown sender")

	// ErrChannelClosed is returned when the message channel has been closed.
	ErrChannelClosed = errors.New("subcast: channel closed")
)
