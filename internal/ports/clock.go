package ports

// PlaybackClock exposes the host player's playback position.
type PlaybackClock interface {
	// CurrentTimeSec returns the reported playback position in seconds.
	CurrentTimeSec() float64
}
