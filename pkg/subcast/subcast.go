package subcast

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bft-labs/subcast/internal/adapters/assets"
	"github.com/bft-labs/subcast/internal/adapters/fs"
	"github.com/bft-labs/subcast/internal/adapters/mqtt"
	"github.com/bft-labs/subcast/internal/adapters/ws"
	"github.com/bft-labs/subcast/internal/app"
	"github.com/bft-labs/subcast/internal/cliconfig"
	"github.com/bft-labs/subcast/internal/domain"
	"github.com/bft-labs/subcast/internal/scheduler"
	"github.com/bft-labs/subcast/pkg/log"
)

// Config holds the configuration for a receiver.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// Tuning holds the caption scheduler settings that can change at runtime.
type Tuning = scheduler.Config

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Subcast is a caption receiver that can be embedded in other applications.
// Use New() to create an instance, then Start() to begin receiving.
type Subcast struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	logger    Logger
	emitter   *eventEmitterWrapper

	loader   Loader
	captions Surface
	overlay  Surface

	plugins []Plugin

	mu       sync.RWMutex
	receiver *app.Receiver
	cancel   context.CancelFunc
}

// New creates a new Subcast instance with the given configuration.
// The instance is created in StateStopped; call Start() to begin receiving.
// Returns an error if configuration is invalid or a surface cannot be created.
func New(cfg Config, opts ...Option) (*Subcast, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := log.OrNoop(o.logger)
	emitter := &eventEmitterWrapper{handler: o.eventHandler}

	captions, err := o.surfaceFactory(cfg.Width, cfg.Height)
	if err != nil {
		return nil, fmt.Errorf("create caption surface: %w", err)
	}
	overlay, err := o.surfaceFactory(cfg.Width, cfg.Height)
	if err != nil {
		return nil, fmt.Errorf("create overlay surface: %w", err)
	}

	loader := o.loader
	if loader == nil {
		loader = assets.New(
			assets.WithBaseDir(cfg.AssetDir),
			assets.WithTimeout(cfg.AssetTimeout),
		)
	}

	return &Subcast{
		config:    cfg,
		opts:      o,
		lifecycle: app.NewLifecycle(logger, emitter),
		logger:    logger,
		emitter:   emitter,
		loader:    loader,
		captions:  captions,
		overlay:   overlay,
		plugins:   o.plugins,
	}, nil
}

// Start begins receiving in the background.
// Returns immediately after starting the event loop goroutine.
// Returns an error if already running or if a plugin fails to initialize.
// The provided context is used for the lifetime of the receiver.
func (s *Subcast) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := s.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.lifecycle.SetCancel(cancel)
	s.receiver = s.newReceiver()

	pluginCfg := PluginConfig{
		Config:      s.config,
		ConfigFile:  s.opts.configFile,
		PinnedFlags: s.opts.pinned,
		Logger:      s.logger,
		Tuner:       s,
	}
	for i, p := range s.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			s.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			cancel()
			s.shutdownPlugins(s.plugins[:i])
			_ = s.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return fmt.Errorf("initialize plugin %s: %w", p.Name(), err)
		}
		s.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	receiver := s.receiver
	s.lifecycle.Go(func() {
		if err := s.lifecycle.TransitionTo(app.StateRunning, "receiver starting"); err != nil {
			s.logger.Error("failed to transition to running", log.Err(err))
			return
		}

		err := receiver.Run(runCtx)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			s.logger.Error("receiver error", log.Err(err))
			cancel()
			s.shutdownPlugins(s.plugins)
			_ = s.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		case ctx.Err() != nil:
			// The parent context ended without Stop().
			if s.lifecycle.TransitionTo(app.StateStopping, "context cancelled") == nil {
				s.shutdownPlugins(s.plugins)
				_ = s.lifecycle.TransitionTo(app.StateStopped, "context cancelled")
			}
		}
	})

	return nil
}

// Stop shuts the receiver down and waits up to app.ShutdownTimeout for the
// event loop to finish. Returns ErrShutdownTimeout if forced.
func (s *Subcast) Stop() error {
	s.mu.Lock()

	if !s.lifecycle.CanStop() {
		s.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := s.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	err := s.lifecycle.WaitWithTimeout(app.ShutdownTimeout)
	s.shutdownPlugins(s.plugins)

	if err != nil {
		_ = s.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = s.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (s *Subcast) Status() State {
	return convertState(s.lifecycle.State())
}

// UpdateTuning validates t and applies it. A running receiver picks it up on
// its next tick; a stopped one uses it on the next Start.
func (s *Subcast) UpdateTuning(t Tuning) error {
	if err := t.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.config.PreloadAhead = t.PreloadAhead
	s.config.TimeShift = t.TimeShift
	s.config.BufferAhead = t.BufferAhead
	s.config.DriftThreshold = t.DriftAheadThreshold
	s.config.MaxPreloadCount = t.MaxPreloadCount
	receiver := s.receiver
	s.mu.Unlock()

	if receiver == nil {
		return nil
	}
	return receiver.UpdateTuning(t)
}

// Config returns a copy of the current configuration.
func (s *Subcast) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// newReceiver builds a fresh receiver for one Start/Stop cycle.
func (s *Subcast) newReceiver() *app.Receiver {
	cfg := s.config
	channel := s.opts.channel
	if channel == nil {
		channel = s.newChannel()
	}

	opts := []app.ReceiverOption{
		app.WithRequestHook(func(req domain.DataRequest) {
			s.emitter.onDataRequest(DataRequestEvent{
				TimeMs:     req.TimeMs,
				DurationMs: req.DurationMs,
				Session:    req.Session,
				Seeking:    req.Seeking,
			})
		}),
	}
	if cfg.SnapshotDir != "" {
		opts = append(opts, app.WithSnapshots(fs.NewSnapshotWriter(cfg.SnapshotDir)))
	}

	return app.NewReceiver(app.ReceiverConfig{
		Namespace:        cfg.Namespace,
		Tuning:           cfg.Tuning(),
		TickInterval:     cfg.TickInterval,
		SnapshotInterval: cfg.SnapshotInterval,
		LoadingSprite:    cfg.LoadingSprite,
	}, channel, s.loader, s.captions, s.overlay, s.logger, opts...)
}

func (s *Subcast) newChannel() Channel {
	cfg := s.config
	if cfg.Transport == cliconfig.TransportMQTT {
		return mqtt.New(mqtt.Config{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
		}, mqtt.WithLogger(s.logger))
	}
	return ws.New(cfg.Listen,
		ws.WithStaticDir(cfg.StaticDir),
		ws.WithLogger(s.logger),
	)
}

// shutdownPlugins shuts plugins down in reverse order.
func (s *Subcast) shutdownPlugins(plugins []Plugin) {
	ctx := context.Background()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			s.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
		} else {
			s.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
		}
	}
}

var _ Tuner = (*Subcast)(nil)
