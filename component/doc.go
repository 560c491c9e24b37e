// Package component defines the lifecycle contract for long-running
// infrastructure pieces (HTTP server, speech model, background sweepers) and
// a registry that starts them in order, stops them in reverse, and
// aggregates their health.
package component
