// Package fallback serves thumbnails on the request path.
//
// A cache hit is returned directly. For misses the package splits by cost:
// standard-tier previews of regular images are generated inline, while
// large tiers and RAW files are queued for background workers and a cheap
// stand-in is served when one can be produced. RAW files are never decoded
// inline; callers receive ErrNotReady until a worker has published a
// preview.
package fallback
