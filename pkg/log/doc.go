/*
Package log provides structured logging for buildhive using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level.

# Usage

Initialize once at startup, then derive child loggers per component:

	log.Init(log.Config{Level: log.InfoLevel})
	logger := log.WithComponent("controlplane")
	logger.Info().Str("profile", profile).Msg("requesting builder assignment")

Console output is the default; JSON output is enabled for CI runs where logs
are collected by machines rather than read by humans.

# Child Loggers

  - WithComponent("registrar") tags every line with the emitting stage
  - WithWorkerID("bh-worker-1") scopes lines to one remote builder
  - WithCluster("buildhive-a1b2c3d4") scopes lines to one builder cluster
*/
package log
