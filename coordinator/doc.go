// Package coordinator implements the pipeline driver sequencing the external
// capabilities (translate, execute, optimize, assess impact) into one
// user-facing answer per inbound message.
//
// A run moves through started -> translating -> executing -> {optimizing ∥
// assessing} -> synthesizing -> done, falling to failed when a critical
// stage errors. Stage criticality is data (core.PolicyFor): translation and
// execution abort the run on failure, optimization and impact analysis
// degrade the response only. Optimization and impact analysis run
// concurrently once execution succeeds and are joined before synthesis.
//
// Every stage invocation is wrapped in a registry Begin/Complete pair tagged
// with the run's request id, so all records of one run are correlatable.
package coordinator
