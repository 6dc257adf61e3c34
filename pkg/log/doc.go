// Package log provides the logging abstraction shared by subcast components.
//
// Components depend only on the [Logger] interface. The zerolog adapter is
// what the CLI wires in; [NoopLogger] is the default for embedded use and
// tests.
//
// # Usage
//
//	logger := log.NewZerologAdapter()
//	logger.Info("receiver started", log.String("addr", ":1112"))
//
// Use [ZerologAdapter.With] to attach fields to every message of a component:
//
//	schedLog := logger.With(log.String("component", "scheduler"))
//
// # Levels
//
// [ParseLevel] maps the textual levels accepted by the CLI (debug, info,
// warn, error) onto zerolog levels.
package log
