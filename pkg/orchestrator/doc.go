// Package orchestrator wires the loader → OpenAPI extraction → store →
// session pipeline behind a single constructor, so callers can go from a
// schema location to a live validation session in one call.
package orchestrator
