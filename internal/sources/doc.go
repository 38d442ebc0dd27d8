// Package sources validates gallery targets against configured roots.
//
// Every externally supplied content key passes through the validator
// before any filesystem access: the source key must be configured, the
// relative path must stay inside the root after cleaning, and the file
// or directory must exist. Protection markers are surfaced so archive
// assembly can refuse protected folders.
package sources
