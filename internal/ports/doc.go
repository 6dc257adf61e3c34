// Package ports defines the interfaces that connect the subtitle engine to
// its host collaborators.
//
// # Port Interfaces
//
//   - [Surface]: 2D paint target (draw image, clear region, resize)
//   - [Loader]: fetches and decodes caption assets
//   - [Channel]: message transport to and from senders
//   - [PlaybackClock]: current playback position of the host player
//   - [Logger]: structured logging abstraction
//
// The engine packages (internal/scheduler, internal/cast) depend only on
// these interfaces. internal/adapters provides the concrete implementations
// (gg canvas, image loader, WebSocket and MQTT channels).
package ports
