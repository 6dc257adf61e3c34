// Package subcast provides an embeddable caption receiver for cast sessions.
//
// A sender (a phone or a browser tab) streams pre-rendered caption images to
// the receiver over WebSocket or MQTT. The receiver asks for caption windows
// ahead of the playback position, preloads the images and paints each frame
// onto a surface at its presentation time.
//
// # Basic Usage
//
//	cfg := subcast.DefaultConfig()
//	cfg.Listen = ":1112"
//
//	rcv, err := subcast.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := rcv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// ... run until shutdown signal ...
//
//	if err := rcv.Stop(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// # Configuration
//
// [Config] selects the transport ("websocket" or "mqtt"), the cast namespace,
// the surface size and the scheduler tuning. Tuning can be changed while
// running with [Subcast.UpdateTuning].
//
// # Event Handling
//
// Implement [EventHandler] (embedding [BaseEventHandler] for defaults) and
// pass it via [WithEventHandler] to observe lifecycle transitions and data
// requests sent to the sender.
//
// # Dependency Injection
//
// The transport, asset loader and paint surfaces can be replaced:
//
//	rcv, err := subcast.New(cfg,
//	    subcast.WithChannel(myChannel),
//	    subcast.WithLoader(myLoader),
//	    subcast.WithSurfaceFactory(mySurfaces),
//	)
//
// # Lifecycle States
//
// A Subcast instance is in one of five states: [StateStopped], [StateStarting],
// [StateRunning], [StateStopping], or [StateCrashed]. Use [Subcast.Status] to
// query the current state.
//
// # Plugins
//
// Plugins are registered with [WithPlugin], initialized on Start and shut
// down on Stop. The configwatcher plugin reloads tuning from the config file:
//
//	import "github.com/bft-labs/subcast/plugins/configwatcher"
//
//	rcv, err := subcast.New(cfg,
//	    subcast.WithConfigFile(path, nil),
//	    configwatcher.WithDefaultConfigWatcher(),
//	)
package subcast
