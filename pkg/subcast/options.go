package subcast

import (
	"github.com/bft-labs/subcast/internal/adapters/canvas"
	"github.com/bft-labs/subcast/internal/ports"
	"github.com/bft-labs/subcast/pkg/log"
)

// Logger is the interface for structured logging.
type Logger = log.Logger

// LogField represents a structured log field.
type LogField = log.Field

// Channel carries records between senders and the receiver.
type Channel = ports.Channel

// Loader fetches and decodes caption images.
type Loader = ports.Loader

// Surface is a paint target for captions or the loading overlay.
type Surface = ports.Surface

// SurfaceFactory creates a surface of the given size. It is called twice
// per instance: once for captions and once for the loading overlay.
type SurfaceFactory func(width, height int) (Surface, error)

// Option configures optional behavior of Subcast.
type Option func(*options)

// options holds the optional configuration for a Subcast instance.
type options struct {
	logger         Logger
	eventHandler   EventHandler
	plugins        []Plugin
	channel        Channel
	loader         Loader
	surfaceFactory SurfaceFactory
	configFile     string
	pinned         map[string]bool
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
		surfaceFactory: func(width, height int) (Surface, error) {
			return canvas.New(width, height), nil
		},
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for subcast events.
// If not provided, no events are emitted.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when Subcast starts.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithChannel replaces the transport selected by Config.Transport.
// The channel must accept Start again after Close if the instance is restarted.
func WithChannel(ch Channel) Option {
	return func(o *options) {
		o.channel = ch
	}
}

// WithLoader replaces the default asset loader.
func WithLoader(l Loader) Option {
	return func(o *options) {
		o.loader = l
	}
}

// WithSurfaceFactory replaces the default in-memory canvas surfaces.
func WithSurfaceFactory(f SurfaceFactory) Option {
	return func(o *options) {
		if f != nil {
			o.surfaceFactory = f
		}
	}
}

// WithConfigFile records where the configuration came from and which
// settings were pinned by flags, for plugins that reload it.
func WithConfigFile(path string, pinned map[string]bool) Option {
	return func(o *options) {
		o.configFile = path
		o.pinned = pinned
	}
}
