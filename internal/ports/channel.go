package ports

import "context"

// Format is the encoding of a channel payload.
type Format int

const (
	// FormatJSON is a UTF-8 JSON document.
	FormatJSON Format = iota
	// FormatMsgpack is a msgpack document.
	FormatMsgpack
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMsgpack:
		return "msgpack"
	default:
		return "unknown"
	}
}

// Inbound is one raw record received from a sender.
type Inbound struct {
	SenderID string
	Format   Format
	Data     []byte
}

// DeliverFunc receives inbound records. Channels call it from their own
// goroutines; implementations must not block for long.
type DeliverFunc func(Inbound)

// Channel is the bidirectional message transport between senders and the
// receiver.
type Channel interface {
	// Start begins accepting records and returns once the channel is ready.
	// It stops when ctx is cancelled or Close is called.
	Start(ctx context.Context, deliver DeliverFunc) error

	// Send delivers data to one sender.
	Send(ctx context.Context, senderID string, data []byte, format Format) error

	// Close releases transport resources.
	Close() error
}
