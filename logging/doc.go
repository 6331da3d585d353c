// Package logging provides a minimal logging interface and adapters for QueryMesh.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the coordinator, stores and adapters use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - MeshLogger with contextual helpers (session, request, component) and
//     domain-specific helpers for stages, model calls and pipeline runs
package logging
