// Package worker drives the polling loops that turn queued jobs into cache
// artifacts. The Manager runs one lane per job kind; each lane claims the
// oldest pending job with an atomic conditional update, executes the kind's
// handler under a heartbeat, and finalizes the row. A job cancelled while
// executing keeps its cancelled status; the late completion write is a no-op.
package worker
