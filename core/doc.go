// Package core provides the foundational domain types, interfaces and execution
// contexts used by QueryMesh. It defines the core abstractions for:
//
//   - Executions (tracked invocations of one pipeline stage with state/timing)
//   - Sessions (stateful conversational containers with turn history)
//   - Adapters (the external capability boundary: translation, query
//     execution, optimization and business-impact analysis)
//   - RunContext (per-request pipeline scope accumulating stage outputs)
//   - Pluggable stores for session state and execution tracking
//
// The package intentionally keeps implementation concerns (persistence, the
// coordinator pipeline, concrete adapters) out of scope, exposing small
// interfaces to enable custom backends and extensions.
package core
