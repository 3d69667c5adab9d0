// Package observability provides structured logging and Prometheus metrics
// for the webhook bridge.
package observability
