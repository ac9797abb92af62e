// Package pipeline drives SIPs through the staged archival workflow. The
// SIP's status is both progress record and advisory lock: every stage binds a
// start, in-progress, and end status, and the runner only ever claims the
// oldest SIP waiting at a stage's start status while no other SIP holds its
// in-progress status.
package pipeline
