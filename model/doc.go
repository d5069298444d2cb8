// Package model defines the provider-agnostic completion service used by the
// orchestration manager and by model-backed member agents.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Express schema-constrained (structured) output as a typed capability
//     (StructuredOutputModel) rather than a runtime attribute probe
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (see model/openai, model/anthropic) implement Model so higher
// layers stay decoupled from vendor SDKs. model/middleware holds decorators
// such as rate limiting and tracing.
package model
