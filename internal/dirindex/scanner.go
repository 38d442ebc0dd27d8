package dirindex

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gallerina/internal/cachekey"
	"gallerina/internal/config"
	"gallerina/internal/fileutil"
	"gallerina/internal/sources"
)

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {},
	".bmp": {}, ".tif": {}, ".tiff": {}, ".webp": {},
}

// Scanner walks source roots and produces index entries for every folder.
type Scanner struct {
	validator    *sources.Validator
	paths        *cachekey.Resolver
	standardTier int
	rawExts      map[string]struct{}
}

// NewScanner constructs a scanner over the configured source roots.
func NewScanner(cfg *config.Config, validator *sources.Validator, paths *cachekey.Resolver) *Scanner {
	rawExts := make(map[string]struct{}, len(cfg.Raw.FileExtensions))
	for _, ext := range cfg.Raw.FileExtensions {
		rawExts[ext] = struct{}{}
	}
	return &Scanner{
		validator:    validator,
		paths:        paths,
		standardTier: cfg.Thumbnails.StandardTier,
		rawExts:      rawExts,
	}
}

// Scan walks every source root and returns an entry per directory, the root
// itself included with an empty directory path. Unreadable directories are
// skipped rather than failing the whole scan.
func (s *Scanner) Scan(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	for _, sourceKey := range s.validator.SourceKeys() {
		root, ok := s.validator.Root(sourceKey)
		if !ok {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return nil
			}
			entry, ok := s.scanDir(sourceKey, root, filepath.ToSlash(rel), path)
			if ok {
				entries = append(entries, entry)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (s *Scanner) scanDir(sourceKey, root, rel, abs string) (Entry, bool) {
	children, err := os.ReadDir(abs)
	if err != nil {
		return Entry{}, false
	}
	if rel == "." {
		rel = ""
	}

	entry := Entry{SourceKey: sourceKey, DirectoryPath: rel}
	var images []string
	for _, child := range children {
		if child.IsDir() {
			continue
		}
		name := child.Name()
		if name == "" || strings.HasPrefix(name, ".") {
			continue
		}
		info, infoErr := child.Info()
		if infoErr != nil {
			continue
		}
		entry.FileCount++
		if info.ModTime().After(entry.LastModified) {
			entry.LastModified = info.ModTime().UTC().Truncate(time.Second)
		}
		if s.isImage(name) {
			images = append(images, name)
		}
	}

	dirTarget := sources.Target{SourceKey: sourceKey, RelativePath: rel, AbsolutePath: abs, IsDir: true}
	entry.IsProtected = s.validator.IsProtected(dirTarget)

	if len(images) > 0 {
		sort.Strings(images)
		first := images[0]
		if rel != "" {
			first = rel + "/" + first
		}
		entry.FirstImagePath = first

		variant := cachekey.VariantStandard
		if _, raw := s.rawExts[strings.ToLower(filepath.Ext(first))]; raw {
			variant = cachekey.VariantRaw
		}
		artifact := s.paths.Resolve(cachekey.ContentKey(sourceKey, first), s.standardTier, variant)
		entry.HasThumbnail = fileutil.FileExistsNonEmpty(artifact)
	}
	return entry, true
}

func (s *Scanner) isImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := imageExtensions[ext]; ok {
		return true
	}
	_, ok := s.rawExts[ext]
	return ok
}
