package domain

// MaxSession is the largest session id before the counter wraps to 0.
const MaxSession uint64 = 1<<53 - 1

// Message actions understood on the application channel.
const (
	ActionPreload        = "subtitle.preload"
	ActionClear          = "subtitle.clear"
	ActionVisibility     = "subtitles.change"
	ActionBufferStart    = "buffer.start"
	ActionBufferProgress = "buffer.precentage"
	ActionPreloadStream  = "preload.stream"
	ActionPlayerHide     = "player.hide"
	ActionRequest        = "request"
)

// Command is an inbound application message. The concrete types below are
// the only implementations.
type Command interface {
	command()
}

// CaptionFragment carries one caption asset for the frame at Time.
// Chunked fragments are concatenated until one arrives with Last set.
type CaptionFragment struct {
	Session *uint64
	Time    int64
	Count   int
	X, Y    int
	ResX    int
	ResY    int
	Data    string
	Chunked bool
	Last    bool
}

// ClearCommand clears a rectangle of the frame at Time. Without a width and
// height it wipes the whole surface.
type ClearCommand struct {
	Session *uint64
	Time    int64
	Count   int
	X, Y    int
	W, H    int
}

// IsWipe reports whether the command clears the entire surface.
func (c ClearCommand) IsWipe() bool {
	return c.W == 0 || c.H == 0
}

// Ack acknowledges that every fragment of a requested window was sent.
type Ack struct {
	Session uint64
	Done    bool
}

// VisibilityChange toggles caption display.
type VisibilityChange struct {
	Show bool
}

// BufferStart announces that the sender started buffering the stream.
type BufferStart struct{}

// BufferProgress reports stream buffering progress in percent.
type BufferProgress struct {
	Percentage int
}

// PreloadStream switches the receiver to the loading screen.
type PreloadStream struct{}

// PlayerHide tears down the loading screen and finishes playback.
type PlayerHide struct{}

func (CaptionFragment) command()  {}
func (ClearCommand) command()     {}
func (Ack) command()              {}
func (VisibilityChange) command() {}
func (BufferStart) command()      {}
func (BufferProgress) command()   {}
func (PreloadStream) command()    {}
func (PlayerHide) command()       {}

// MatchesSession reports whether a command tagged with session belongs to
// current. Untagged commands always match.
func MatchesSession(session *uint64, current uint64) bool {
	return session == nil || *session == current
}

// NextSession returns the session id following s.
func NextSession(s uint64) uint64 {
	if s >= MaxSession {
		return 0
	}
	return s + 1
}
