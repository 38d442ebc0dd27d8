package sources

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gallerina/internal/cachekey"
	"gallerina/internal/config"
	"gallerina/internal/services"
)

// Target is a canonicalized reference to a file or folder inside a source root.
// Job admission and workers trust only Targets, never raw client paths.
type Target struct {
	SourceKey    string
	RelativePath string
	AbsolutePath string
	IsDir        bool
}

// ContentKey returns the canonical content key for the target.
func (t Target) ContentKey() string {
	return cachekey.ContentKey(t.SourceKey, t.RelativePath)
}

// Validator canonicalizes client-supplied content keys against configured
// source roots.
type Validator struct {
	roots           map[string]string
	protectedMarker string
	rawExts         map[string]struct{}
}

// NewValidator constructs a validator from configuration.
func NewValidator(cfg *config.Config) *Validator {
	roots := make(map[string]string, len(cfg.Sources.Roots))
	for key, root := range cfg.Sources.Roots {
		roots[key] = root
	}
	rawExts := make(map[string]struct{}, len(cfg.Raw.FileExtensions))
	for _, ext := range cfg.Raw.FileExtensions {
		rawExts[strings.ToLower(ext)] = struct{}{}
	}
	return &Validator{
		roots:           roots,
		protectedMarker: cfg.Sources.ProtectedMarker,
		rawExts:         rawExts,
	}
}

// SourceKeys returns the configured source keys in sorted order.
func (v *Validator) SourceKeys() []string {
	keys := make([]string, 0, len(v.roots))
	for key := range v.roots {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Root returns the root directory for a source key.
func (v *Validator) Root(sourceKey string) (string, bool) {
	root, ok := v.roots[sourceKey]
	return root, ok
}

// Resolve canonicalizes a content key into a Target. It rejects unknown
// sources, traversal attempts, and paths that do not exist on disk.
func (v *Validator) Resolve(contentKey string) (Target, error) {
	sourceKey, rel, err := cachekey.SplitContentKey(contentKey)
	if err != nil {
		return Target{}, services.Wrap(services.ErrValidation, "sources", "resolve", "malformed content key", err)
	}

	root, ok := v.roots[sourceKey]
	if !ok {
		return Target{}, services.Wrap(services.ErrConfiguration, "sources", "resolve", "unknown source "+sourceKey, nil)
	}

	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return Target{}, services.Wrap(services.ErrValidation, "sources", "resolve", "path escapes source root", nil)
	}

	abs := filepath.Join(root, cleaned)
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return Target{}, services.Wrap(services.ErrNotFound, "sources", "resolve", contentKey, nil)
		}
		return Target{}, services.Wrap(services.ErrTransient, "sources", "resolve", "stat target", err)
	}

	return Target{
		SourceKey:    sourceKey,
		RelativePath: filepath.ToSlash(cleaned),
		AbsolutePath: abs,
		IsDir:        info.IsDir(),
	}, nil
}

// ResolveFile behaves like Resolve but additionally requires a regular file.
func (v *Validator) ResolveFile(contentKey string) (Target, error) {
	target, err := v.Resolve(contentKey)
	if err != nil {
		return Target{}, err
	}
	if target.IsDir {
		return Target{}, services.Wrap(services.ErrValidation, "sources", "resolve", contentKey+" is a directory, not a file", nil)
	}
	return target, nil
}

// ResolveDir behaves like Resolve but additionally requires a directory.
func (v *Validator) ResolveDir(contentKey string) (Target, error) {
	target, err := v.Resolve(contentKey)
	if err != nil {
		return Target{}, err
	}
	if !target.IsDir {
		return Target{}, services.Wrap(services.ErrValidation, "sources", "resolve", contentKey+" is a file, not a directory", nil)
	}
	return target, nil
}

// IsProtected reports whether a directory target carries the protection
// marker. Authorization itself is the caller's concern; this only feeds the
// directory index flag.
func (v *Validator) IsProtected(target Target) bool {
	if !target.IsDir || v.protectedMarker == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(target.AbsolutePath, v.protectedMarker))
	return err == nil
}

// IsRawFile reports whether a path carries one of the configured camera RAW
// extensions.
func (v *Validator) IsRawFile(path string) bool {
	_, ok := v.rawExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {},
	".bmp": {}, ".tif": {}, ".tiff": {}, ".webp": {},
}

// ListImages returns the image files directly inside a directory target,
// sorted by name and split into directly decodable files and camera RAW
// files. Subdirectories are not descended.
func (v *Validator) ListImages(dir Target) (plain, raw []string, err error) {
	if !dir.IsDir {
		return nil, nil, services.Wrap(services.ErrValidation, "sources", "list-images", dir.RelativePath+" is not a directory", nil)
	}
	entries, err := os.ReadDir(dir.AbsolutePath)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrTransient, "sources", "list-images", "read directory", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if v.IsRawFile(name) {
			raw = append(raw, name)
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]; ok {
			plain = append(plain, name)
		}
	}
	sort.Strings(plain)
	sort.Strings(raw)
	return plain, raw, nil
}
