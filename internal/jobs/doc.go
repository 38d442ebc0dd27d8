// Package jobs persists asynchronous gallery work in SQLite and exposes
// helpers for driving job lifecycles.
//
// Thumbnail, zip, and RAW preview jobs live in separate tables that share one
// row shape. The Store manages connections, schema initialization, the atomic
// claim used by polling workers, progress and heartbeat updates, and the
// status transitions of the public lifecycle enum.
//
// The database records work in flight, not the cache itself; whether an
// artifact exists is always answered by the filesystem. Schema changes bump
// the version in schema.go; users clear the database to adopt the new schema.
package jobs
