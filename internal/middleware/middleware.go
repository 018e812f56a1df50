// Package middleware holds the echo middleware of the ontology API.
//
// Global middleware runs on every route: request ids, New Relic
// transactions, the request-scoped logger, Prometheus request metrics,
// CORS, secure headers and panic recovery. Write routes (creating or
// deleting ontologies, submissions, mappings and users) also pass through
// the per-client rate limiter and, when a Clerk key is configured, RequireAuth.
package middleware
