// Package logging builds the slog loggers used across fornax and defines the
// shared attribute helpers and field names that keep log output consistent
// between the daemon, the pipeline, and the service clients.
package logging
