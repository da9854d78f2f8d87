// Package daemon coordinates the long-running revoice process.
//
// It wires configuration, queue storage, and the workflow manager into a
// single lifecycle with flock-based locking to prevent multiple instances.
// The daemon exposes queue maintenance helpers, ingests uploaded video
// files, sweeps stale workspaces at startup, and serves the HTTP API when
// an api_bind address is configured.
//
// Keep orchestration logic here: individual pipeline stages live in their
// respective packages while the daemon focuses on startup, shutdown, and
// high level coordination.
package daemon
