package fallback

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"gallerina/internal/admission"
	"gallerina/internal/cachekey"
	"gallerina/internal/config"
	"gallerina/internal/fileutil"
	"gallerina/internal/logging"
	"gallerina/internal/sources"
	"gallerina/internal/transform"
)

// ErrNotReady signals that no servable artifact exists yet and a job has
// been queued; the client should poll and retry.
var ErrNotReady = errors.New("artifact not ready")

// Served names the artifact to stream back, and whether it is a stand-in
// for a larger size still being generated.
type Served struct {
	Path        string
	Placeholder bool
}

// Generator is the synchronous fallback path for thumbnail requests whose
// artifact is not in the cache. Standard-tier misses are generated inline on
// the request; large-tier misses are queued and answered with the standard
// artifact as a placeholder. RAW files are never decoded inline.
type Generator struct {
	cfg       *config.Config
	validator *sources.Validator
	paths     *cachekey.Resolver
	thumbs    *transform.Thumbnailer
	gate      *admission.Gate
	logger    *slog.Logger
	rawExts   map[string]struct{}
}

// NewGenerator constructs the fallback generator.
func NewGenerator(cfg *config.Config, validator *sources.Validator, paths *cachekey.Resolver, thumbs *transform.Thumbnailer, gate *admission.Gate, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	rawExts := make(map[string]struct{}, len(cfg.Raw.FileExtensions))
	for _, ext := range cfg.Raw.FileExtensions {
		rawExts[ext] = struct{}{}
	}
	return &Generator{
		cfg:       cfg,
		validator: validator,
		paths:     paths,
		thumbs:    thumbs,
		gate:      gate,
		logger:    logging.NewComponentLogger(logger, "fallback"),
		rawExts:   rawExts,
	}
}

// Thumbnail returns an artifact to serve for a content key at a size tier,
// generating or queueing work as needed.
func (g *Generator) Thumbnail(ctx context.Context, contentKey string, sizeTier int) (Served, error) {
	target, err := g.validator.ResolveFile(contentKey)
	if err != nil {
		return Served{}, err
	}

	key := target.ContentKey()
	isRaw := g.isRawFile(target.RelativePath)
	variant := cachekey.VariantStandard
	if isRaw {
		variant = cachekey.VariantRaw
	}

	artifact := g.paths.Resolve(key, sizeTier, variant)
	if fileutil.FileExistsNonEmpty(artifact) {
		return Served{Path: artifact}, nil
	}

	standardTier := g.cfg.Thumbnails.StandardTier
	if !isRaw && sizeTier == standardTier {
		// Small enough to make the client wait for.
		if err := g.thumbs.Generate(target.AbsolutePath, artifact, sizeTier); err != nil {
			return Served{}, err
		}
		g.logger.InfoContext(ctx, "inline thumbnail generated",
			logging.String(logging.FieldTarget, key),
			logging.Int(logging.FieldSizeTier, sizeTier))
		return Served{Path: artifact}, nil
	}

	// Too expensive for the request path; queue it and serve what we have.
	if _, err := g.gate.EnqueueThumbnail(ctx, key, sizeTier); err != nil {
		return Served{}, err
	}

	standin := g.paths.Resolve(key, standardTier, variant)
	if fileutil.FileExistsNonEmpty(standin) {
		return Served{Path: standin, Placeholder: true}, nil
	}
	if !isRaw {
		if err := g.thumbs.Generate(target.AbsolutePath, standin, standardTier); err != nil {
			return Served{}, err
		}
		return Served{Path: standin, Placeholder: true}, nil
	}
	// RAW with nothing cached at all: the queued job has to land first.
	if sizeTier != standardTier {
		if _, err := g.gate.EnqueueThumbnail(ctx, key, standardTier); err != nil {
			return Served{}, err
		}
	}
	return Served{}, ErrNotReady
}

func (g *Generator) isRawFile(relativePath string) bool {
	ext := strings.ToLower(filepath.Ext(relativePath))
	_, ok := g.rawExts[ext]
	return ok
}
