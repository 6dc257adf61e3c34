// Package scheduler decides, on every display tick, which caption frames to
// paint and when to ask the sender for more data.
//
// The Player owns a time-ordered frame queue, a drift-corrected estimate of
// the host playback clock, an asset preloader and the session counter that
// invalidates stale data after seeks. It is driven from a single goroutine:
// every method, including request and preload completions, must be called
// from the receiver's event loop.
package scheduler

import (
	"errors"
	"math"
	"time"

	"github.com/bft-labs/subcast/internal/domain"
	"github.com/bft-labs/subcast/internal/frame"
	"github.com/bft-labs/subcast/internal/ports"
	"github.com/bft-labs/subcast/pkg/log"
)

// staleThresholdMs is how far behind play time a caption may arrive before
// it is dropped.
const staleThresholdMs = 1000

// Requester asks the sender for a window of caption data. done must be
// called exactly once, on the event loop.
type Requester interface {
	RequestData(req domain.DataRequest, done func(error))
}

// RequesterFunc adapts a function to Requester.
type RequesterFunc func(req domain.DataRequest, done func(error))

// RequestData calls f.
func (f RequesterFunc) RequestData(req domain.DataRequest, done func(error)) {
	f(req, done)
}

// Preloader is the asset preloader the player drives.
type Preloader interface {
	frame.Preloader
	Abort()
	Reset()
}

// Option configures a Player.
type Option func(*Player)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(p *Player) {
		p.logger = log.OrNoop(l)
	}
}

// WithNow overrides the wall clock used by the estimator.
func WithNow(now func() time.Time) Option {
	return func(p *Player) {
		p.now = now
	}
}

// Player is the subtitle scheduler.
type Player struct {
	clock     ports.PlaybackClock
	surface   ports.Surface
	preloader Preloader
	requester Requester
	logger    log.Logger
	now       func() time.Time

	preloadAheadMs int64
	timeShiftMs    int64
	bufferAheadMs  int64

	queue         []*frame.Frame
	session       uint64
	finished      bool
	playing       bool
	seeking       bool
	visible       bool
	est           clockEstimator
	requestedData bool
	lastRequested int64
}

// New creates a Player. It starts finished; call Reset when a stream loads.
func New(clock ports.PlaybackClock, surface ports.Surface, preloader Preloader, requester Requester, cfg Config, opts ...Option) *Player {
	p := &Player{
		clock:     clock,
		surface:   surface,
		preloader: preloader,
		requester: requester,
		logger:    log.NoopLogger{},
		now:       time.Now,
		finished:  true,
		visible:   true,
	}
	p.SetConfig(cfg)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetConfig applies new tuning. Zero fields fall back to defaults.
func (p *Player) SetConfig(cfg Config) {
	cfg = cfg.withDefaults()
	p.preloadAheadMs = cfg.PreloadAhead.Milliseconds()
	p.timeShiftMs = cfg.TimeShift.Milliseconds()
	p.bufferAheadMs = cfg.BufferAhead.Milliseconds()
	p.est.thresholdMs = cfg.DriftAheadThreshold.Milliseconds()
	if s, ok := p.preloader.(interface{ SetMaxConcurrent(int) }); ok {
		s.SetMaxConcurrent(cfg.MaxPreloadCount)
	}
}

// Reset prepares the player for a new stream: idle, visible, empty queue.
func (p *Player) Reset() {
	p.finished = false
	p.playing = false
	p.seeking = false
	p.visible = true
	p.invalidateState()
}

// ProcessCaption adds a caption fragment to the frame at timeMs.
func (p *Player) ProcessCaption(timeMs int64, count, x, y, resX, resY int, data string) {
	if p.finished {
		return
	}
	f := p.getOrAddFrame(timeMs, count, resX, resY)
	if f == nil {
		return
	}

	playMs := p.est.peek(p.now(), p.reportedMs(), p.playing)
	if playMs-f.Time > staleThresholdMs {
		p.logger.Warn("dropping stale caption",
			log.Err(domain.ErrStaleFragment),
			log.Int64("frame_ms", f.Time),
			log.Int64("play_ms", playMs))
		if n := len(p.queue); n > 0 && p.queue[n-1] == f && f.Fragments() == 0 {
			p.queue[n-1] = nil
			p.queue = p.queue[:n-1]
		}
		return
	}
	f.Add(x, y, data)
}

// ProcessClearRegion adds a clear rectangle to the frame at timeMs.
func (p *Player) ProcessClearRegion(timeMs int64, count, x, y, w, h int) {
	if p.finished {
		return
	}
	f := p.getOrAddFrame(timeMs, count, 0, 0)
	if f == nil {
		return
	}
	f.AddClearRegion(x, y, w, h)
}

// ProcessWipe queues a frame that clears the whole surface at timeMs.
func (p *Player) ProcessWipe(timeMs int64) {
	if p.finished {
		return
	}
	if last := p.lastFrame(); last != nil && last.Time > timeMs {
		p.reportOutOfOrder(timeMs, last.Time)
		return
	}
	p.queue = append(p.queue, frame.NewWipe(timeMs))
}

// RunRoutine runs one display tick and reports whether ticks should keep
// being driven.
func (p *Player) RunRoutine() bool {
	if p.finished || !p.visible {
		return false
	}

	timeMs := p.est.estimate(p.now(), p.reportedMs(), p.playing)
	p.paint(timeMs)
	p.preload(timeMs)

	diff := p.lastRequested - timeMs
	if diff < p.bufferAheadMs {
		if diff < 0 && p.lastRequested > p.bufferAheadMs {
			p.logger.Warn("severely under-running, data requests are too slow",
				log.Int64("behind_ms", -diff),
				log.Uint64("session", p.session))
		}
		p.requestData()
	}
	return (p.playing || p.seeking) && p.visible
}

func (p *Player) paint(timeMs int64) {
	lastReady, lastClear, lastNotReady := -1, -1, -1
	for i, f := range p.queue {
		if f.Time+p.timeShiftMs > timeMs {
			break
		}
		if f.IsWipe() {
			lastClear = i
		}
		if f.Ready() {
			lastReady = i
		} else {
			lastNotReady = i
		}
	}
	if lastReady == -1 {
		return
	}

	for i := max(lastClear, 0); i <= lastReady; i++ {
		if _, err := p.queue[i].Show(p.surface); err != nil {
			p.logger.Error("paint frame", log.Int64("frame_ms", p.queue[i].Time), log.Err(err))
		}
	}

	cut := max(lastReady+1, lastNotReady)
	n := copy(p.queue, p.queue[cut:])
	clear(p.queue[n:])
	p.queue = p.queue[:n]
}

func (p *Player) preload(timeMs int64) {
	horizon := timeMs + p.preloadAheadMs
	for _, f := range p.queue {
		if f.Time > horizon {
			break
		}
		f.Preload(p.preloader, p.onCaptionError)
	}
}

func (p *Player) onCaptionError(_ *frame.Caption, err error) {
	p.logger.Warn("caption asset failed to load", log.Err(err))
}

// SeekOccurred pauses, enters seeking and restarts data requests at timeMs.
func (p *Player) SeekOccurred(timeMs int64) {
	p.SetPlayState(false)
	p.seeking = true
	p.invalidate(timeMs)
}

// Invalidate drops all queued data and re-requests from the current
// reported play time under a new session.
func (p *Player) Invalidate() {
	p.invalidate(p.reportedMs())
}

// SetPlayState marks playback as playing or paused. Playing ends seeking.
func (p *Player) SetPlayState(playing bool) {
	p.playing = playing
	if playing {
		p.seeking = false
	}
}

// SetVisible shows or hides captions. Showing invalidates so that current
// data is requested again.
func (p *Player) SetVisible(visible bool) {
	if p.visible == visible {
		return
	}
	p.visible = visible
	if visible {
		p.Invalidate()
	} else {
		p.ClearScreen()
	}
}

// Finish ends playback. Every later command is ignored until Reset.
func (p *Player) Finish() {
	if p.finished {
		return
	}
	p.finished = true
	p.preloader.Abort()
	p.ClearScreen()
}

// ClearScreen clears the whole surface.
func (p *Player) ClearScreen() {
	p.surface.Clear()
}

// Finished reports whether the player is finished.
func (p *Player) Finished() bool { return p.finished }

// Session returns the current session id.
func (p *Player) Session() uint64 { return p.session }

// Playing reports whether playback is running.
func (p *Player) Playing() bool { return p.playing }

// Seeking reports whether a seek is in progress.
func (p *Player) Seeking() bool { return p.seeking }

// Visible reports whether captions are shown.
func (p *Player) Visible() bool { return p.visible }

// QueueLen returns the number of queued frames.
func (p *Player) QueueLen() int { return len(p.queue) }

// Frames returns a copy of the frame queue.
func (p *Player) Frames() []*frame.Frame {
	return append([]*frame.Frame(nil), p.queue...)
}

func (p *Player) invalidate(timeMs int64) {
	p.invalidateState()
	p.ClearScreen()
	p.requestedData = false
	p.lastRequested = timeMs
	p.session = domain.NextSession(p.session)
	p.requestData()
}

func (p *Player) invalidateState() {
	clear(p.queue)
	p.queue = p.queue[:0]
	p.preloader.Reset()
	p.est.reset()
	p.requestedData = false
	p.lastRequested = 0
}

func (p *Player) requestData() {
	if p.requestedData || !p.visible {
		return
	}
	req := domain.DataRequest{
		TimeMs:     p.lastRequested,
		DurationMs: p.bufferAheadMs,
		Session:    p.session,
		Seeking:    p.seeking,
	}
	p.requestedData = true
	p.lastRequested += p.bufferAheadMs

	p.requester.RequestData(req, func(err error) {
		if req.Session != p.session {
			return
		}
		p.requestedData = false
		if err != nil {
			lvl := p.logger.Warn
			if errors.Is(err, domain.ErrNoSender) {
				lvl = p.logger.Debug
			}
			lvl("data request failed",
				log.Int64("time_ms", req.TimeMs),
				log.Uint64("session", req.Session),
				log.Err(err))
		}
	})
}

func (p *Player) getOrAddFrame(timeMs int64, count, resX, resY int) *frame.Frame {
	last := p.lastFrame()
	switch {
	case last != nil && last.Time == timeMs:
		return last
	case last != nil && last.Time > timeMs:
		p.reportOutOfOrder(timeMs, last.Time)
		return nil
	default:
		f := frame.New(timeMs, count, resX, resY)
		p.queue = append(p.queue, f)
		return f
	}
}

func (p *Player) lastFrame() *frame.Frame {
	if len(p.queue) == 0 {
		return nil
	}
	return p.queue[len(p.queue)-1]
}

func (p *Player) reportOutOfOrder(timeMs, lastMs int64) {
	p.logger.Error("frames arrived out of order",
		log.Err(domain.ErrOutOfOrder),
		log.Int64("frame_ms", timeMs),
		log.Int64("last_frame_ms", lastMs))
}

func (p *Player) reportedMs() int64 {
	return int64(math.Round(p.clock.CurrentTimeSec() * 1000))
}
