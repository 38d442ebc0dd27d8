// Package api defines the transport DTOs of the HTTP surface and the
// converters from internal records to those DTOs. Handlers in the daemon
// package stay thin by delegating to the services here.
package api
