package worker

import (
	"context"
	"fmt"
	"path/filepath"

	"gallerina/internal/cachekey"
	"gallerina/internal/fileutil"
	"gallerina/internal/jobs"
	"gallerina/internal/services"
	"gallerina/internal/sources"
	"gallerina/internal/transform"
)

// ThumbnailHandler generates resized JPEG artifacts for image files. A job
// may target a single file or a whole folder; folder jobs cover every
// directly decodable image inside the directory and report per-file progress.
type ThumbnailHandler struct {
	validator *sources.Validator
	paths     *cachekey.Resolver
	thumbs    *transform.Thumbnailer
}

// NewThumbnailHandler constructs the handler.
func NewThumbnailHandler(validator *sources.Validator, paths *cachekey.Resolver, thumbs *transform.Thumbnailer) *ThumbnailHandler {
	return &ThumbnailHandler{validator: validator, paths: paths, thumbs: thumbs}
}

func (h *ThumbnailHandler) Kind() jobs.Kind {
	return jobs.KindThumbnail
}

func (h *ThumbnailHandler) Execute(ctx context.Context, job *jobs.Job, progress Progress) (Result, error) {
	target, err := h.validator.Resolve(job.Target)
	if err != nil {
		return Result{}, err
	}
	if target.IsDir {
		return h.executeFolder(ctx, job, target, progress)
	}

	artifact := h.paths.Resolve(job.Target, job.SizeTier, cachekey.VariantStandard)
	if fileutil.FileExistsNonEmpty(artifact) {
		// Another generator got there first; the artifact is the same
		// bytes either way.
		return Result{Artifact: artifact, Message: "already generated"}, nil
	}

	progress(0, target.RelativePath)
	if err := h.thumbs.Generate(target.AbsolutePath, artifact, job.SizeTier); err != nil {
		return Result{}, err
	}
	return Result{Artifact: artifact, Message: "thumbnail generated"}, nil
}

func (h *ThumbnailHandler) executeFolder(ctx context.Context, job *jobs.Job, dir sources.Target, progress Progress) (Result, error) {
	names, _, err := h.validator.ListImages(dir)
	if err != nil {
		return Result{}, err
	}
	if len(names) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "worker", "thumbnail-folder", "folder has no images", nil)
	}

	generated, cached := 0, 0
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		key := dir.ContentKey() + "/" + name
		artifact := h.paths.Resolve(key, job.SizeTier, cachekey.VariantStandard)
		if fileutil.FileExistsNonEmpty(artifact) {
			cached++
		} else {
			if err := h.thumbs.Generate(filepath.Join(dir.AbsolutePath, name), artifact, job.SizeTier); err != nil {
				return Result{}, fmt.Errorf("generate %s: %w", key, err)
			}
			generated++
		}
		progress(i+1, name)
	}

	// Folder jobs fan out into per-file artifacts, so there is no single
	// artifact path to record.
	return Result{
		Message: fmt.Sprintf("generated %d thumbnails (%d already cached)", generated, cached),
	}, nil
}
