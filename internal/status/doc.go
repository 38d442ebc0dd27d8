// Package status derives client-facing job reports from the store.
//
// Liveness and stall flags are computed at read time from heartbeat
// recency rather than persisted, so a report is always consistent with
// the clock it was taken under.
package status
