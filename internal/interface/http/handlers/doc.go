// Package handlers provides reusable HTTP building blocks for the API server:
// health check primitives (liveness, readiness, composite checks over the
// database, cache, and course catalog) and middleware for authentication,
// security headers, and request size limits.
package handlers
