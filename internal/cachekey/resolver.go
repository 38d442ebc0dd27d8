package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Variant selects between the standard thumbnail artifact and the RAW preview
// artifact for the same content key and tier.
type Variant string

const (
	VariantStandard Variant = "standard"
	VariantRaw      Variant = "raw"
)

// Resolver maps content keys to cache artifact locations beneath a fixed root.
// Resolution is pure: the same inputs yield the same absolute path in every
// process, which is what lets the fallback generator and the async worker race
// on the same artifact safely (last writer wins via atomic rename).
type Resolver struct {
	root string
}

// NewResolver constructs a resolver rooted at the cache directory.
func NewResolver(root string) *Resolver {
	return &Resolver{root: filepath.Clean(root)}
}

// Root returns the cache root directory.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve returns the absolute artifact path for a content key at a size tier.
// The content key is hashed rather than embedded so display paths with
// filesystem-unsafe characters never leak into cache file names.
func (r *Resolver) Resolve(contentKey string, sizeTier int, variant Variant) string {
	sum := sha256.Sum256([]byte(contentKey))
	name := hex.EncodeToString(sum[:]) + "_" + strconv.Itoa(sizeTier)
	if variant == VariantRaw {
		name += ".raw"
	}
	return filepath.Join(r.root, strconv.Itoa(sizeTier), name+".jpg")
}

// TierDir returns the directory holding all artifacts of one size tier.
func (r *Resolver) TierDir(sizeTier int) string {
	return filepath.Join(r.root, strconv.Itoa(sizeTier))
}

// ContentKey builds the canonical content key for a source-relative path.
func ContentKey(sourceKey, relativePath string) string {
	rel := strings.TrimPrefix(filepath.ToSlash(relativePath), "/")
	return sourceKey + "/" + rel
}

// SplitContentKey separates a content key into its source key and relative
// path. It fails on keys without a source prefix.
func SplitContentKey(key string) (sourceKey, relativePath string, err error) {
	cleaned := strings.TrimSpace(key)
	idx := strings.Index(cleaned, "/")
	if idx <= 0 || idx == len(cleaned)-1 {
		return "", "", fmt.Errorf("malformed content key %q", key)
	}
	return cleaned[:idx], cleaned[idx+1:], nil
}
