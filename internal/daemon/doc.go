// Package daemon coordinates the long-running Gallerina process.
//
// It wires configuration, the job store, the worker manager, the directory
// index rebuilder, and the HTTP API into a single lifecycle with flock-based
// locking to prevent multiple instances. The daemon owns startup ordering,
// graceful shutdown, and retention sweeps over old logs and archives.
//
// Keep orchestration logic here: job handlers and transforms live in their
// respective packages while the daemon focuses on startup, shutdown, and
// high level coordination.
package daemon
