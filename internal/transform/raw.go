package transform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/disintegration/imaging"

	"gallerina/internal/config"
	"gallerina/internal/fileutil"
	"gallerina/internal/services"
)

// Executor abstracts command execution for the RAW decoder.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

// commandExecutor executes commands using os/exec.
type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

// RawDecoder turns camera RAW files into JPEG previews via an external
// decoder. The two-stage pipeline runs the decoder with TIFF output on
// stdout, decodes that in-process, then resizes like any thumbnail.
type RawDecoder struct {
	binary  string
	timeout time.Duration
	quality int
	exec    Executor
}

// NewRawDecoder constructs a decoder from configuration.
func NewRawDecoder(cfg *config.Config) *RawDecoder {
	return NewRawDecoderWithExecutor(cfg, nil)
}

// NewRawDecoderWithExecutor allows injecting a custom executor for testing.
func NewRawDecoderWithExecutor(cfg *config.Config, executor Executor) *RawDecoder {
	if executor == nil {
		executor = commandExecutor{}
	}
	return &RawDecoder{
		binary:  cfg.Raw.DecoderBinary,
		timeout: time.Duration(cfg.Raw.DecodeTimeout) * time.Second,
		quality: cfg.Thumbnails.JPEGQuality,
		exec:    executor,
	}
}

// Preview decodes srcPath and writes a JPEG preview fitted to sizeTier at
// destPath. Decoder failures and empty output are external tool errors; the
// destination is only ever written on success.
func (d *RawDecoder) Preview(ctx context.Context, srcPath, destPath string, sizeTier int) error {
	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	// -c streams to stdout, -w uses camera white balance, -T emits TIFF.
	output, err := d.exec.Run(runCtx, d.binary, []string{"-c", "-w", "-T", srcPath})
	if err != nil {
		if runCtx.Err() != nil {
			return services.Wrap(services.ErrTimeout, "transform", "raw-decode", srcPath, runCtx.Err())
		}
		return services.Wrap(services.ErrExternalTool, "transform", "raw-decode", d.binary+" failed for "+srcPath, err)
	}
	if len(output) == 0 {
		return services.Wrap(services.ErrExternalTool, "transform", "raw-decode", d.binary+" produced no output for "+srcPath, nil)
	}

	img, err := imaging.Decode(bytes.NewReader(output), imaging.AutoOrientation(true))
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "transform", "raw-decode", "decode decoder output for "+srcPath, err)
	}

	preview := img
	bounds := img.Bounds()
	if bounds.Dx() > sizeTier || bounds.Dy() > sizeTier {
		preview = imaging.Fit(img, sizeTier, sizeTier, imaging.Lanczos)
	}

	err = fileutil.WriteAtomic(destPath, func(w io.Writer) error {
		return imaging.Encode(w, preview, imaging.JPEG, imaging.JPEGQuality(d.quality))
	})
	if err != nil {
		return fmt.Errorf("write raw preview %s: %w", destPath, err)
	}
	return nil
}
