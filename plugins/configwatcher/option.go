package configwatcher

import "github.com/bft-labs/subcast/pkg/subcast"

// WithConfigWatcher returns a subcast Option that enables config file
// watching. The file is taken from subcast.WithConfigFile.
//
// Usage:
//
//	rcv, err := subcast.New(cfg,
//	    subcast.WithConfigFile(path, changed),
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        DebounceDelay: 250 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) subcast.Option {
	return subcast.WithPlugin(New(cfg))
}

// WithDefaultConfigWatcher returns a subcast Option that enables config
// watching with default settings (debounce 100ms).
func WithDefaultConfigWatcher() subcast.Option {
	return WithConfigWatcher(DefaultConfig())
}
