package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/subcast/internal/animator"
	"github.com/bft-labs/subcast/internal/cast"
	"github.com/bft-labs/subcast/internal/domain"
	"github.com/bft-labs/subcast/internal/ports"
	"github.com/bft-labs/subcast/internal/preload"
	"github.com/bft-labs/subcast/internal/scheduler"
	"github.com/bft-labs/subcast/pkg/log"
)

const (
	// DefaultTickInterval approximates a 60 Hz display.
	DefaultTickInterval = 16 * time.Millisecond

	inboundBuffer = 64
	startAttempts = 3
	// overlayConcurrency bounds loading screen asset loads.
	overlayConcurrency = 4
)

// ReceiverConfig contains configuration for the receiver loop.
type ReceiverConfig struct {
	Namespace        string
	Tuning           scheduler.Config
	TickInterval     time.Duration
	SnapshotInterval time.Duration
	LoadingSprite    []string
}

// ReceiverOption configures a Receiver.
type ReceiverOption func(*Receiver)

// WithSnapshots stores painted surfaces in store at most once per
// ReceiverConfig.SnapshotInterval.
func WithSnapshots(store ports.SnapshotStore) ReceiverOption {
	return func(r *Receiver) {
		r.snapshots = store
	}
}

// WithRequestHook is called on the loop after each data request is sent.
func WithRequestHook(fn func(domain.DataRequest)) ReceiverOption {
	return func(r *Receiver) {
		r.onRequest = fn
	}
}

// WithNow overrides the wall clock of the scheduler and the overlay.
func WithNow(now func() time.Time) ReceiverOption {
	return func(r *Receiver) {
		r.now = now
	}
}

// Receiver owns the event loop and everything confined to it: the channel
// adapter, the scheduler, both surfaces and the preload completions.
type Receiver struct {
	cfg       ReceiverConfig
	channel   ports.Channel
	logger    ports.Logger
	captions  ports.Surface
	overlay   ports.Surface
	snapshots ports.SnapshotStore
	onRequest func(domain.DataRequest)
	now       func() time.Time

	adapter   *cast.Adapter
	preloader *preload.Preloader
	assets    *preload.Preloader

	inbound chan ports.Inbound
	wake    chan struct{}
	done    chan struct{}
	stop    sync.Once

	taskMu sync.Mutex
	tasks  []func()
}

// NewReceiver wires a receiver. captions is the subtitle surface; overlay
// hosts the loading screen and may be nil.
func NewReceiver(
	cfg ReceiverConfig,
	channel ports.Channel,
	loader ports.Loader,
	captions ports.Surface,
	overlay ports.Surface,
	logger ports.Logger,
	opts ...ReceiverOption,
) *Receiver {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	r := &Receiver{
		cfg:      cfg,
		channel:  channel,
		logger:   log.OrNoop(logger),
		captions: captions,
		overlay:  overlay,
		now:      time.Now,
		inbound:  make(chan ports.Inbound, inboundBuffer),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	tuning := cfg.Tuning
	if tuning.MaxPreloadCount <= 0 {
		tuning.MaxPreloadCount = scheduler.DefaultConfig().MaxPreloadCount
	}
	r.preloader = preload.New(loader,
		preload.WithMaxConcurrent(tuning.MaxPreloadCount),
		preload.WithDispatcher(r.Dispatch),
		preload.WithLogger(r.logger),
	)
	r.assets = preload.New(loader,
		preload.WithMaxConcurrent(overlayConcurrency),
		preload.WithDispatcher(r.Dispatch),
		preload.WithLogger(r.logger),
	)

	adapterOpts := []cast.Option{
		cast.WithNamespace(cfg.Namespace),
		cast.WithLogger(r.logger),
		cast.WithRequestHook(r.requestSent),
		cast.WithDispatcher(r.Dispatch),
		cast.WithSchedulerOptions(scheduler.WithNow(r.now)),
	}
	if overlay != nil {
		adapterOpts = append(adapterOpts, cast.WithOverlay(cast.NewOverlay(overlay, animator.WithClock(r.now))))
	}
	r.adapter = cast.New(channel, captions, r.preloader, cfg.Tuning, adapterOpts...)
	return r
}

// Adapter returns the channel adapter. It must only be used from the loop,
// for example inside Dispatch.
func (r *Receiver) Adapter() *cast.Adapter {
	return r.adapter
}

// Dispatch schedules fn to run on the event loop. It never blocks.
func (r *Receiver) Dispatch(fn func()) {
	r.taskMu.Lock()
	r.tasks = append(r.tasks, fn)
	r.taskMu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// UpdateTuning validates cfg and applies it on the loop.
func (r *Receiver) UpdateTuning(cfg scheduler.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.Dispatch(func() {
		r.adapter.Player().SetConfig(cfg)
		r.logger.Info("tuning updated",
			ports.Duration("preload_ahead", cfg.PreloadAhead),
			ports.Duration("time_shift", cfg.TimeShift),
			ports.Duration("buffer_ahead", cfg.BufferAhead),
			ports.Duration("drift_threshold", cfg.DriftAheadThreshold),
			ports.Int("max_preload", cfg.MaxPreloadCount))
	})
	return nil
}

// Run starts the channel and drives the event loop until ctx is cancelled.
func (r *Receiver) Run(ctx context.Context) error {
	defer r.stop.Do(func() { close(r.done) })

	if err := r.startChannel(ctx); err != nil {
		return err
	}
	defer func() {
		if err := r.channel.Close(); err != nil {
			r.logger.Warn("close channel", ports.Err(err))
		}
	}()

	if len(r.cfg.LoadingSprite) > 0 && r.overlay != nil {
		r.Dispatch(func() {
			r.loadSprite()
		})
	}

	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	var snapshotC <-chan time.Time
	if r.snapshots != nil && r.cfg.SnapshotInterval > 0 {
		snapTicker := time.NewTicker(r.cfg.SnapshotInterval)
		defer snapTicker.Stop()
		snapshotC = snapTicker.C
	}

	r.logger.Info("receiver running", ports.Duration("tick", r.cfg.TickInterval))
	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return nil
		case in := <-r.inbound:
			r.adapter.HandleInbound(in)
		case <-r.wake:
			r.runTasks()
		case <-ticker.C:
			r.adapter.Tick()
		case <-snapshotC:
			r.snapshot(ctx)
		}
	}
}

func (r *Receiver) startChannel(ctx context.Context) error {
	bo := newBackoff(DefaultBackoffInitial, DefaultBackoffMax)
	var err error
	for attempt := 1; attempt <= startAttempts; attempt++ {
		if err = r.channel.Start(ctx, r.deliver); err == nil {
			return nil
		}
		r.logger.Warn("channel start failed",
			ports.Int("attempt", attempt),
			ports.Duration("retry_in", bo.Current()),
			ports.Err(err))
		if attempt == startAttempts || !bo.Wait(ctx) {
			break
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("start channel: %w", err)
}

func (r *Receiver) deliver(in ports.Inbound) {
	select {
	case r.inbound <- in:
	case <-r.done:
	}
}

func (r *Receiver) runTasks() {
	r.taskMu.Lock()
	tasks := r.tasks
	r.tasks = nil
	r.taskMu.Unlock()

	for _, fn := range tasks {
		fn()
	}
}

func (r *Receiver) requestSent(req domain.DataRequest) {
	r.logger.Debug("requested caption window",
		ports.Int64("time_ms", req.TimeMs),
		ports.Int64("duration_ms", req.DurationMs),
		ports.Uint64("session", req.Session),
		ports.Bool("seeking", req.Seeking))
	if r.onRequest != nil {
		r.onRequest(req)
	}
}

func (r *Receiver) loadSprite() {
	overlay := r.adapter.Overlay()
	if overlay == nil {
		return
	}
	overlay.LoadSprite(r.assets, r.cfg.LoadingSprite, func(err error) {
		r.logger.Warn("loading sprite unavailable", ports.Err(err))
	})
}

func (r *Receiver) snapshot(ctx context.Context) {
	for _, s := range []struct {
		name    string
		surface ports.Surface
	}{
		{"captions", r.captions},
		{"overlay", r.overlay},
	} {
		src, ok := s.surface.(snapshotSource)
		if !ok || !src.Dirty() {
			continue
		}
		if err := r.snapshots.Save(ctx, s.name, src); err != nil {
			r.logger.Warn("snapshot failed", ports.String("surface", s.name), ports.Err(err))
		}
	}
}

// snapshotSource is a surface that tracks changes and can be encoded.
type snapshotSource interface {
	ports.Encoder
	Dirty() bool
}

func (r *Receiver) shutdown() {
	r.adapter.Shutdown()
	r.preloader.Abort()
	r.assets.Abort()
	r.runTasks()
	r.logger.Info("receiver stopped")
}
