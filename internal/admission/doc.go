// Package admission is the gate every enqueue request passes through. It
// validates targets against configured source roots, short-circuits requests
// whose artifact already exists in the cache, and applies the
// check-then-insert dedup that keeps at most one live job per target and
// size tier.
package admission
