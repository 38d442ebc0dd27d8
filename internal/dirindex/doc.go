// Package dirindex maintains a materialized index of gallery folders so
// listing pages never walk source trees on the request path. Rebuilds write
// a full new batch and flip the active flag to it in one transaction;
// readers always see exactly one complete batch.
package dirindex
