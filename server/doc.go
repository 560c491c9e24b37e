// Package server provides the HTTP edge for the transcription service:
// a Gin engine mounted on a ServeMux with h2c support, a standard middleware
// stack, and built-in operational endpoints.
//
// # Middleware
//
// Built-in middleware (server/middleware):
//
//   - Recovery: Panic recovery with structured logging
//   - Logging: Request/response logging with duration tracking
//   - CORS: Cross-origin resource sharing configuration
//   - RequestID: Request ID generation and propagation
//   - BodySize: Request body size limits
//
// # Endpoints
//
// Built-in endpoints (server/endpoint):
//
//   - /health: Health check aggregation across components
//   - /info: Application information
//   - /metrics: Runtime memory and goroutine metrics
//   - /liveness: Kubernetes liveness probe
//   - /readiness: Kubernetes readiness probe
//   - /version: Build version information
package server
