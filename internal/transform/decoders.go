package transform

// Register decoders beyond the stdlib set so gallery sources in bmp, tiff,
// and webp resize like any jpeg.
import (
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)
