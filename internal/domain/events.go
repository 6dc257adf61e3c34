package domain

// EventType identifies a host player event.
type EventType string

// Player events delivered by the host.
const (
	EventRequestLoad   EventType = "REQUEST_LOAD"
	EventMediaFinished EventType = "MEDIA_FINISHED"
	EventBuffering     EventType = "BUFFERING"
	EventRequestStop   EventType = "REQUEST_STOP"
	EventSeeking       EventType = "SEEKING"
	EventPlaying       EventType = "PLAYING"
	EventPause         EventType = "PAUSE"
	EventTimeUpdate    EventType = "TIME_UPDATE"
)

// PlayerEvent is one host player notification. CurrentMediaTime is in
// seconds and is nil when the host did not report a position.
type PlayerEvent struct {
	Type             EventType
	SenderID         string
	IsBuffering      bool
	CurrentMediaTime *float64
}

// DataRequest asks the sender for the caption window starting at TimeMs.
type DataRequest struct {
	TimeMs     int64
	DurationMs int64
	Session    uint64
	Seeking    bool
}
