// Package logging wraps log/slog with Gallerina's handlers, standardized
// field keys, and context-derived attributes.
//
// Two output formats are supported: a line-oriented console handler for
// interactive use and slog's JSON handler for machine ingestion. Component
// loggers carry a "component" attribute that the console handler renders as a
// message prefix. WithContext pulls job id, kind, session, and correlation
// fields out of a request context so handlers and workers log consistently.
package logging
