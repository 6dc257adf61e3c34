package subcast

import "context"

// Plugin extends a Subcast instance with optional behavior.
// Plugins are initialized in registration order on Start and shut down in
// reverse order on Stop.
type Plugin interface {
	// Name identifies the plugin in logs.
	Name() string

	// Initialize is called from Start. ctx is cancelled when the receiver stops.
	// Returning an error aborts Start.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown releases plugin resources.
	Shutdown(ctx context.Context) error
}

// Tuner applies new scheduler tuning to a running receiver.
type Tuner interface {
	UpdateTuning(t Tuning) error
}

// PluginConfig is handed to plugins on Initialize.
type PluginConfig struct {
	// Config is the configuration the instance was created with.
	Config Config

	// ConfigFile is the file Config was loaded from, if any.
	ConfigFile string

	// PinnedFlags names settings fixed on the command line. File reloads
	// must not override them.
	PinnedFlags map[string]bool

	Logger Logger
	Tuner  Tuner
}
