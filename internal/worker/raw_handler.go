package worker

import (
	"context"

	"gallerina/internal/cachekey"
	"gallerina/internal/fileutil"
	"gallerina/internal/jobs"
	"gallerina/internal/sources"
	"gallerina/internal/transform"
)

// RawPreviewHandler generates JPEG previews for camera RAW files through the
// external decoder.
type RawPreviewHandler struct {
	validator *sources.Validator
	paths     *cachekey.Resolver
	decoder   *transform.RawDecoder
}

// NewRawPreviewHandler constructs the handler.
func NewRawPreviewHandler(validator *sources.Validator, paths *cachekey.Resolver, decoder *transform.RawDecoder) *RawPreviewHandler {
	return &RawPreviewHandler{validator: validator, paths: paths, decoder: decoder}
}

func (h *RawPreviewHandler) Kind() jobs.Kind {
	return jobs.KindRawPreview
}

func (h *RawPreviewHandler) Execute(ctx context.Context, job *jobs.Job, progress Progress) (Result, error) {
	target, err := h.validator.ResolveFile(job.Target)
	if err != nil {
		return Result{}, err
	}

	artifact := h.paths.Resolve(job.Target, job.SizeTier, cachekey.VariantRaw)
	if fileutil.FileExistsNonEmpty(artifact) {
		return Result{Artifact: artifact, Message: "already generated"}, nil
	}

	progress(0, target.RelativePath)
	if err := h.decoder.Preview(ctx, target.AbsolutePath, artifact, job.SizeTier); err != nil {
		return Result{}, err
	}
	return Result{Artifact: artifact, Message: "raw preview generated"}, nil
}
