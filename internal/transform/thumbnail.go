package transform

import (
	"fmt"
	"io"
	"os"

	"github.com/disintegration/imaging"

	"gallerina/internal/config"
	"gallerina/internal/fileutil"
	"gallerina/internal/services"
)

// Thumbnailer resizes source images into JPEG artifacts of a bounded size.
type Thumbnailer struct {
	quality int
}

// NewThumbnailer constructs a thumbnailer with the configured JPEG quality.
func NewThumbnailer(cfg *config.Config) *Thumbnailer {
	return &Thumbnailer{quality: cfg.Thumbnails.JPEGQuality}
}

// Generate decodes the source image, fits it within a sizeTier square, and
// writes the JPEG artifact atomically. Aspect ratio is preserved; images
// already smaller than the tier are re-encoded without upscaling.
func (t *Thumbnailer) Generate(srcPath, destPath string, sizeTier int) error {
	src, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		if os.IsNotExist(err) {
			return services.Wrap(services.ErrNotFound, "transform", "thumbnail", srcPath, nil)
		}
		return services.Wrap(services.ErrTransient, "transform", "thumbnail", "decode "+srcPath, err)
	}

	thumb := src
	bounds := src.Bounds()
	if bounds.Dx() > sizeTier || bounds.Dy() > sizeTier {
		thumb = imaging.Fit(src, sizeTier, sizeTier, imaging.Lanczos)
	}

	err = fileutil.WriteAtomic(destPath, func(w io.Writer) error {
		return imaging.Encode(w, thumb, imaging.JPEG, imaging.JPEGQuality(t.quality))
	})
	if err != nil {
		return fmt.Errorf("write thumbnail %s: %w", destPath, err)
	}
	return nil
}
