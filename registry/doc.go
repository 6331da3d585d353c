// Package registry houses concrete implementations of core.Registry, the
// shared structure tracking in-flight and historical agent executions. The
// registry is the only structure touched concurrently by unrelated pipeline
// runs, so implementations must serialize mutations per execution id while
// letting unrelated ids proceed.
package registry
