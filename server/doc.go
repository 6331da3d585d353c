// Package server exposes the mesh over HTTP: the chat endpoint, session
// lifecycle operations and agent-execution introspection. It uses the
// standard library mux with method-qualified patterns and JSON bodies; all
// timestamps are RFC 3339 UTC.
//
// Critical pipeline failures are reported with status 200 and an
// explanatory response string plus a populated query_result.error_message;
// only framework-level failures surface as 5xx.
package server
