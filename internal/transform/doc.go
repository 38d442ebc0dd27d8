// Package transform holds the artifact generators workers and the fallback
// path share: image resize to JPEG thumbnails, RAW preview decoding through
// an external decoder, and ZIP archive assembly. Every generator writes its
// artifact atomically so readers only ever observe complete files.
package transform
