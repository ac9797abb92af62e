// Package api exposes the pipeline over HTTP: package intake, per-stage
// triggers, destination cleanup, dashboard housekeeping, and read-only views
// of the SIP store. External schedulers drive the pipeline entirely through
// these endpoints; the daemon's internal ticker uses the same runner.
package api
