// Package configwatcher reloads scheduler tuning when the subcast config
// file changes on disk.
package configwatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/subcast/internal/cliconfig"
	"github.com/bft-labs/subcast/pkg/log"
	"github.com/bft-labs/subcast/pkg/subcast"
)

// Plugin watches the config file and pushes changed tuning to the receiver.
// Only tuning is applied at runtime; transport and surface settings need a
// restart.
type Plugin struct {
	mu sync.Mutex

	debounceDelay time.Duration

	path    string
	base    subcast.Config
	pinned  map[string]bool
	current subcast.Tuning
	tuner   subcast.Tuner
	logger  log.Logger

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = DefaultConfig().DebounceDelay
	}
	return &Plugin{
		debounceDelay: cfg.DebounceDelay,
		logger:        log.NewNoopLogger(),
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching cfg.ConfigFile. Without a config file the plugin
// stays idle.
func (p *Plugin) Initialize(ctx context.Context, cfg subcast.PluginConfig) error {
	p.mu.Lock()
	p.path = cfg.ConfigFile
	p.base = cfg.Config
	p.pinned = cfg.PinnedFlags
	p.current = cfg.Config.Tuning()
	p.tuner = cfg.Tuner
	p.logger = log.OrNoop(cfg.Logger)
	p.mu.Unlock()

	if p.path == "" || p.tuner == nil {
		p.logger.Warn("config watcher disabled: no config file")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		_ = watcher.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("config watcher plugin initialized", log.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	return nil
}

// Shutdown stops the config watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher: watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.reload()
	})
}

// reload re-reads the file on top of the startup configuration and applies
// the tuning if it changed.
func (p *Plugin) reload() {
	p.mu.Lock()
	cfg := p.base
	path := p.path
	pinned := p.pinned
	p.mu.Unlock()

	fc, err := cliconfig.LoadFileConfig(path)
	if err != nil {
		p.logger.Warn("config watcher: reload failed", log.Err(err))
		return
	}
	if err := cliconfig.ApplyFileConfig(&cfg, fc, pinned); err != nil {
		p.logger.Warn("config watcher: invalid config", log.Err(err))
		return
	}
	tuning := cfg.Tuning()
	if err := tuning.Validate(); err != nil {
		p.logger.Warn("config watcher: invalid tuning", log.Err(err))
		return
	}

	p.mu.Lock()
	unchanged := tuning == p.current
	p.mu.Unlock()
	if unchanged {
		p.logger.Debug("config watcher: tuning unchanged")
		return
	}

	if err := p.tuner.UpdateTuning(tuning); err != nil {
		p.logger.Warn("config watcher: apply tuning failed", log.Err(err))
		return
	}
	p.mu.Lock()
	p.current = tuning
	p.mu.Unlock()
	p.logger.Info("config watcher: tuning reloaded", log.String("path", path))
}

var _ subcast.Plugin = (*Plugin)(nil)
