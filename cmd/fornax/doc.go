// Package main hosts the fornax CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the fornax daemon: registering delivered packages, listing
// and inspecting tracked SIPs, triggering pipeline stages, removing package
// archives, and configuration scaffolding. Command logic stays thin here;
// the pipeline itself lives in the internal packages and runs inside the
// daemon process.
package main
