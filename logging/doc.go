// Package logging provides a minimal logging interface and adapters for magentic.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the runtime, the orchestration actors and the CLI use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NewLogger building a JSON/text logger, optionally writing to a rotating file
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger, closer := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "text"})
//	defer closer.Close()
//	orch, err := orchestration.NewMagentic(members, manager, func(o *orchestration.Options) { o.Logger = logger })
package logging
