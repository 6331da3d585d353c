// Package adapter provides ready-made implementations of the external
// capability contracts defined in core (Translator, Executor, Optimizer,
// ImpactAnalyzer).
//
// The Mock* types return canned or function-driven results and are intended
// for tests and examples. The rule-based Optimizer/ImpactAnalyzer and the
// StaticExecutor cover local development without a model backend or a
// warehouse connection. Production translators backed by OpenAI and
// Anthropic live in the openai and anthropic sub-packages.
package adapter
