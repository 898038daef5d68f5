// Package static provides a mock provider that returns a canned,
// pre-determined response. This is useful for exercising the orchestrator
// and output layers without making live API calls.
package static
