// Package cachekey resolves content keys to content-addressed cache file
// locations. The filesystem, not the database, is the authority on whether an
// artifact exists; determinism here is the contract that makes duplicate work
// harmless.
package cachekey
