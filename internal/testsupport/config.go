package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"gallerina/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields, registers one source root named "main", and
// applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CacheRoot = filepath.Join(base, "cache")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ZipDir = filepath.Join(base, "zips")
	cfgVal.Paths.APIBind = "127.0.0.1:0"

	sourceRoot := filepath.Join(base, "sources", "main")
	if err := os.MkdirAll(sourceRoot, 0o755); err != nil {
		t.Fatalf("mkdir source root: %v", err)
	}
	cfgVal.Sources.Roots = map[string]string{"main": sourceRoot}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithSourceRoot registers an extra source root, creating its directory.
func WithSourceRoot(key string) ConfigOption {
	return func(b *configBuilder) {
		root := filepath.Join(b.baseDir, "sources", key)
		if err := os.MkdirAll(root, 0o755); err != nil {
			b.t.Fatalf("mkdir source root %s: %v", key, err)
		}
		b.cfg.Sources.Roots[key] = root
	}
}

// WithThumbnailTiers overrides the standard and large size tiers.
func WithThumbnailTiers(standard, large int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Thumbnails.StandardTier = standard
		b.cfg.Thumbnails.LargeTier = large
	}
}

// WithStubbedDecoder writes a stub RAW decoder executable and points the
// config at it. The stub emits the provided bytes on stdout.
func WithStubbedDecoder(output []byte) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		payload := filepath.Join(binDir, "decoder_output")
		if err := os.WriteFile(payload, output, 0o644); err != nil {
			b.t.Fatalf("write stub payload: %v", err)
		}
		target := filepath.Join(binDir, "dcraw")
		script := []byte("#!/bin/sh\ncat \"" + payload + "\"\n")
		if err := os.WriteFile(target, script, 0o755); err != nil {
			b.t.Fatalf("write stub decoder: %v", err)
		}
		b.cfg.Raw.DecoderBinary = target
	}
}

// SourceRoot returns the directory backing a named source root on the config.
func SourceRoot(cfg *config.Config, key string) string {
	return cfg.Sources.Roots[key]
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CacheRoot)
}
