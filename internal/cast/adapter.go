// Package cast binds the subtitle scheduler to a sender channel.
//
// The Adapter decodes inbound records, turns host player events into
// scheduler state changes, reassembles chunked caption payloads and answers
// the scheduler's data requests by messaging the active sender. It also
// drives the loading overlay while a stream is being prepared.
//
// Like the scheduler, an Adapter is confined to the receiver's event loop.
package cast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/bft-labs/subcast/internal/codec"
	"github.com/bft-labs/subcast/internal/domain"
	"github.com/bft-labs/subcast/internal/ports"
	"github.com/bft-labs/subcast/internal/scheduler"
	"github.com/bft-labs/subcast/pkg/log"
)

// DefaultNamespace is the application channel namespace.
const DefaultNamespace = "urn:x-cast:com.melonpan.messages"

// Option configures an Adapter.
type Option func(*Adapter)

// WithNamespace sets the application channel namespace. Messages for other
// namespaces are ignored.
func WithNamespace(ns string) Option {
	return func(a *Adapter) {
		if ns != "" {
			a.namespace = ns
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(l log.Logger) Option {
	return func(a *Adapter) {
		a.logger = log.OrNoop(l)
	}
}

// WithContext sets the context used for outbound sends.
func WithContext(ctx context.Context) Option {
	return func(a *Adapter) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

// WithDispatcher sends data requests off the loop. d must run the given
// function on the loop; send results are delivered through it. Without a
// dispatcher requests are sent inline.
func WithDispatcher(d func(func())) Option {
	return func(a *Adapter) {
		a.dispatch = d
	}
}

// WithOverlay installs a loading overlay.
func WithOverlay(o *Overlay) Option {
	return func(a *Adapter) {
		a.overlay = o
	}
}

// WithRequestHook registers a function called after each data request is
// sent.
func WithRequestHook(fn func(domain.DataRequest)) Option {
	return func(a *Adapter) {
		a.onRequest = fn
	}
}

// WithSchedulerOptions passes options through to the scheduler.
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(a *Adapter) {
		a.playerOpts = append(a.playerOpts, opts...)
	}
}

// Adapter connects a scheduler.Player to a ports.Channel.
type Adapter struct {
	channel    ports.Channel
	namespace  string
	logger     log.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	dispatch   func(func())
	overlay    *Overlay
	onRequest  func(domain.DataRequest)
	playerOpts []scheduler.Option

	player *scheduler.Player
	clock  ReportedClock

	senderID     string
	senderFormat ports.Format
	chunk        strings.Builder
	resolver     func(error)
	requestSeq   uint64
	preloading   bool
	looping      bool
}

// New creates an adapter and the scheduler it drives. The scheduler paints
// on surface and preloads through preloader.
func New(channel ports.Channel, surface ports.Surface, preloader scheduler.Preloader, cfg scheduler.Config, opts ...Option) *Adapter {
	a := &Adapter{
		channel:   channel,
		namespace: DefaultNamespace,
		logger:    log.NoopLogger{},
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.ctx, a.cancel = context.WithCancel(a.ctx)
	playerOpts := append([]scheduler.Option{scheduler.WithLogger(a.logger)}, a.playerOpts...)
	a.player = scheduler.New(&a.clock, surface, preloader, a, cfg, playerOpts...)
	return a
}

// Player returns the driven scheduler.
func (a *Adapter) Player() *scheduler.Player {
	return a.player
}

// Clock returns the host-reported playback clock.
func (a *Adapter) Clock() *ReportedClock {
	return &a.clock
}

// Overlay returns the loading overlay, or nil.
func (a *Adapter) Overlay() *Overlay {
	return a.overlay
}

// SenderID returns the active sender, or "" when none is loaded.
func (a *Adapter) SenderID() string {
	return a.senderID
}

// Preloading reports whether the loading overlay owns the loop.
func (a *Adapter) Preloading() bool {
	return a.preloading
}

// Looping reports whether the display loop wants further ticks.
func (a *Adapter) Looping() bool {
	return a.looping
}

// Tick runs one display frame. It reports whether another frame is wanted;
// once it returns false the loop stays idle until an event resumes it.
func (a *Adapter) Tick() bool {
	if !a.looping {
		return false
	}
	if a.preloading {
		if a.overlay != nil {
			a.overlay.Update()
		}
		return true
	}
	a.looping = a.player.RunRoutine()
	return a.looping
}

func (a *Adapter) resume() {
	a.looping = true
}

// HandleInbound decodes and applies one inbound record.
func (a *Adapter) HandleInbound(in ports.Inbound) {
	rec, err := codec.Decode(in.Data, in.Format)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownAction) {
			a.logger.Debug("ignoring message", log.String("sender", in.SenderID), log.Err(err))
			return
		}
		a.logger.Warn("dropping malformed record",
			log.String("sender", in.SenderID),
			log.String("format", in.Format.String()),
			log.Err(err))
		return
	}

	if rec.Event != nil {
		if in.SenderID != "" {
			rec.Event.SenderID = in.SenderID
		}
		a.HandleEvent(*rec.Event, in.Format)
		return
	}
	if rec.Namespace != "" && rec.Namespace != a.namespace {
		a.logger.Debug("ignoring message for other namespace", log.String("namespace", rec.Namespace))
		return
	}
	a.HandleCommand(rec.Command)
}

// HandleEvent applies a host player event. format is the encoding replies
// to the event's sender should use.
func (a *Adapter) HandleEvent(ev domain.PlayerEvent, format ports.Format) {
	a.logger.Debug("player event", log.String("type", string(ev.Type)), log.String("sender", ev.SenderID))
	if ev.CurrentMediaTime != nil {
		a.clock.Set(*ev.CurrentMediaTime)
	}

	switch ev.Type {
	case domain.EventRequestLoad:
		a.preloading = false
		a.clearOverlay()
		a.senderID = ev.SenderID
		a.senderFormat = format
		a.chunk.Reset()
		a.resolver = nil
		a.player.Reset()
	case domain.EventMediaFinished:
		a.preloading = false
		a.senderID = ""
		a.player.Finish()
	case domain.EventRequestStop:
		a.player.Finish()
	case domain.EventBuffering:
		a.player.SetPlayState(!ev.IsBuffering)
		if !ev.IsBuffering {
			a.resume()
		}
	case domain.EventPlaying:
		a.player.SetPlayState(true)
		a.resume()
		a.clearOverlay()
	case domain.EventPause:
		a.player.SetPlayState(false)
	case domain.EventSeeking:
		sec := a.clock.CurrentTimeSec()
		if ev.CurrentMediaTime != nil {
			sec = *ev.CurrentMediaTime
		}
		a.player.SeekOccurred(int64(math.Round(sec * 1000)))
	case domain.EventTimeUpdate:
	default:
		a.logger.Debug("unhandled player event", log.String("type", string(ev.Type)))
	}
}

// HandleCommand applies an application command.
func (a *Adapter) HandleCommand(cmd domain.Command) {
	session := a.player.Session()

	switch c := cmd.(type) {
	case domain.CaptionFragment:
		if !domain.MatchesSession(c.Session, session) {
			return
		}
		data := c.Data
		if c.Chunked {
			a.chunk.WriteString(c.Data)
			if !c.Last {
				return
			}
			data = a.chunk.String()
			a.chunk.Reset()
		}
		a.player.ProcessCaption(c.Time, c.Count, c.X, c.Y, c.ResX, c.ResY, data)
	case domain.ClearCommand:
		if !domain.MatchesSession(c.Session, session) {
			return
		}
		if c.IsWipe() {
			a.player.ProcessWipe(c.Time)
		} else {
			a.player.ProcessClearRegion(c.Time, c.Count, c.X, c.Y, c.W, c.H)
		}
	case domain.Ack:
		if !c.Done || c.Session != session || a.resolver == nil {
			return
		}
		resolve := a.resolver
		a.resolver = nil
		resolve(nil)
	case domain.VisibilityChange:
		if a.player.Visible() == c.Show {
			a.player.Invalidate()
			return
		}
		a.player.SetVisible(c.Show)
		if (a.player.Playing() || a.player.Seeking()) && a.player.Visible() {
			a.resume()
		}
	case domain.BufferStart:
	case domain.BufferProgress:
		if a.overlay != nil {
			a.overlay.SetProgress(c.Percentage, !a.player.Playing())
		}
	case domain.PreloadStream:
		a.player.Reset()
		if a.overlay != nil {
			a.overlay.Start()
		}
		a.preloading = true
		a.resume()
	case domain.PlayerHide:
		a.preloading = false
		a.player.Finish()
		a.clearOverlay()
	case nil:
	default:
		a.logger.Debug("unhandled command", log.String("type", fmt.Sprintf("%T", cmd)))
	}
}

// RequestData implements scheduler.Requester by messaging the active
// sender. done runs when the sender acknowledges the window, or with an
// error when the request cannot be sent. A newer request replaces the
// pending one.
func (a *Adapter) RequestData(req domain.DataRequest, done func(error)) {
	if a.senderID == "" {
		done(domain.ErrNoSender)
		return
	}
	data, err := codec.EncodeRequest(a.namespace, req, a.senderFormat)
	if err != nil {
		done(fmt.Errorf("encode request: %w", err))
		return
	}

	a.requestSeq++
	seq := a.requestSeq
	a.resolver = done
	senderID, format := a.senderID, a.senderFormat

	if a.dispatch == nil {
		a.requestSent(seq, req, a.send(senderID, data, format))
		return
	}
	go func() {
		err := a.send(senderID, data, format)
		a.dispatch(func() {
			a.requestSent(seq, req, err)
		})
	}()
}

func (a *Adapter) send(senderID string, data []byte, format ports.Format) error {
	if err := a.channel.Send(a.ctx, senderID, data, format); err != nil {
		return fmt.Errorf("send request to %s: %w", senderID, err)
	}
	return nil
}

// requestSent runs on the loop once a send finished. A failure resolves the
// request only while it is still the pending one.
func (a *Adapter) requestSent(seq uint64, req domain.DataRequest, err error) {
	if err == nil {
		if a.onRequest != nil {
			a.onRequest(req)
		}
		return
	}
	if seq != a.requestSeq || a.resolver == nil {
		a.logger.Debug("dropped failure of superseded request", log.Err(err))
		return
	}
	resolve := a.resolver
	a.resolver = nil
	resolve(err)
}

// Shutdown finishes playback and hides the overlay.
func (a *Adapter) Shutdown() {
	a.cancel()
	a.preloading = false
	a.looping = false
	a.player.Finish()
	a.clearOverlay()
}

func (a *Adapter) clearOverlay() {
	if a.overlay != nil {
		a.overlay.Clear()
	}
}

var _ scheduler.Requester = (*Adapter)(nil)
