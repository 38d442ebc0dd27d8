// Package services provides the shared error taxonomy and context annotations
// used across Gallerina's components.
//
// Errors are tagged with sentinel markers (validation, configuration,
// not_found, external tool, transient) via Wrap so callers can decide whether
// a failure should be rejected up front or recorded on a job row.
package services
