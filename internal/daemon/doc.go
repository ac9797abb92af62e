// Package daemon runs the long-lived fornax process: a single-instance file
// lock, a periodic scheduler that advances waiting SIPs one stage per tick,
// and the HTTP API server.
//
// The in-progress status is an advisory guard with no lease; within a live
// process a stuck claim stays stuck. Startup is the one exception: the flock
// guarantees no other instance holds claims, so Start reverts any in-progress
// rows left behind by a crash (logged as released) before scheduling resumes.
package daemon
