package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	CacheRoot string `toml:"cache_root"`
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	ZipDir    string `toml:"zip_dir"`
	APIBind   string `toml:"api_bind"`
}

// Sources maps logical source keys to gallery root directories.
type Sources struct {
	Roots           map[string]string `toml:"roots"`
	ProtectedMarker string            `toml:"protected_marker"`
}

// Thumbnails contains configuration for preview generation.
type Thumbnails struct {
	StandardTier int `toml:"standard_tier"`
	LargeTier    int `toml:"large_tier"`
	JPEGQuality  int `toml:"jpeg_quality"`
}

// Raw contains configuration for RAW camera file decoding.
type Raw struct {
	DecoderBinary  string   `toml:"decoder_binary"`
	DecodeTimeout  int      `toml:"decode_timeout"`
	FileExtensions []string `toml:"file_extensions"`
}

// Zip contains configuration for archive assembly.
type Zip struct {
	NamePrefix string `toml:"name_prefix"`
	MaxMembers int    `toml:"max_members"`
}

// Workers contains configuration for worker loop timing.
type Workers struct {
	PollInterval       int `toml:"poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	LivenessWindow     int `toml:"liveness_window"`
	CancelWindow       int `toml:"cancel_window"`
}

// Index contains configuration for the directory index rebuild.
type Index struct {
	Enabled         bool `toml:"enabled"`
	RebuildInterval int  `toml:"rebuild_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Gallerina.
//
// Configuration sections by subsystem:
//   - Paths: cache root, data/log directories, and API bind address
//   - Sources: named gallery source roots and protection marker
//   - Thumbnails: preview size tiers and JPEG quality
//   - Raw: external RAW decoder settings
//   - Zip: archive naming and member limits
//   - Workers: polling, heartbeat, and cancellation windows
//   - Index: directory index rebuild scheduling
//   - Logging: log format, level, and retention
type Config struct {
	Paths      Paths      `toml:"paths"`
	Sources    Sources    `toml:"sources"`
	Thumbnails Thumbnails `toml:"thumbnails"`
	Raw        Raw        `toml:"raw"`
	Zip        Zip        `toml:"zip"`
	Workers    Workers    `toml:"workers"`
	Index      Index      `toml:"index"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/gallerina/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	_, err = os.Stat(defaultPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defaultPath, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return defaultPath, true, nil
}

// WriteSample writes the embedded sample configuration to the provided path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the directories the daemon needs at runtime.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.CacheRoot, c.Paths.DataDir, c.Paths.LogDir, c.Paths.ZipDir}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		trimmed = filepath.Join(home, trimmed[2:])
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	return abs, nil
}
