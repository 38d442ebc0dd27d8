package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSources(); err != nil {
		return err
	}
	c.normalizeThumbnails()
	c.normalizeRaw()
	c.normalizeZip()
	c.normalizeWorkers()
	c.normalizeIndex()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CacheRoot) == "" {
		c.Paths.CacheRoot = defaultCacheRoot
	}
	if c.Paths.CacheRoot, err = expandPath(c.Paths.CacheRoot); err != nil {
		return fmt.Errorf("paths.cache_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ZipDir) == "" {
		c.Paths.ZipDir = defaultZipDir
	}
	if c.Paths.ZipDir, err = expandPath(c.Paths.ZipDir); err != nil {
		return fmt.Errorf("paths.zip_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeSources() error {
	if c.Sources.Roots == nil {
		c.Sources.Roots = map[string]string{}
	}
	normalized := make(map[string]string, len(c.Sources.Roots))
	for key, root := range c.Sources.Roots {
		cleanKey := strings.ToLower(strings.TrimSpace(key))
		if cleanKey == "" {
			continue
		}
		expanded, err := expandPath(root)
		if err != nil {
			return fmt.Errorf("sources.roots.%s: %w", cleanKey, err)
		}
		normalized[cleanKey] = expanded
	}
	c.Sources.Roots = normalized
	c.Sources.ProtectedMarker = strings.TrimSpace(c.Sources.ProtectedMarker)
	if c.Sources.ProtectedMarker == "" {
		c.Sources.ProtectedMarker = defaultProtectedMarker
	}
	return nil
}

func (c *Config) normalizeThumbnails() {
	if c.Thumbnails.StandardTier <= 0 {
		c.Thumbnails.StandardTier = defaultStandardTier
	}
	if c.Thumbnails.LargeTier <= 0 {
		c.Thumbnails.LargeTier = defaultLargeTier
	}
	if c.Thumbnails.JPEGQuality <= 0 || c.Thumbnails.JPEGQuality > 100 {
		c.Thumbnails.JPEGQuality = defaultJPEGQuality
	}
}

func (c *Config) normalizeRaw() {
	c.Raw.DecoderBinary = strings.TrimSpace(c.Raw.DecoderBinary)
	if c.Raw.DecoderBinary == "" {
		c.Raw.DecoderBinary = defaultRawDecoderBinary
	}
	if c.Raw.DecodeTimeout <= 0 {
		c.Raw.DecodeTimeout = defaultRawDecodeTimeout
	}
	if len(c.Raw.FileExtensions) == 0 {
		c.Raw.FileExtensions = append([]string(nil), defaultRawExtensions...)
		return
	}
	exts := make([]string, 0, len(c.Raw.FileExtensions))
	seen := make(map[string]struct{}, len(c.Raw.FileExtensions))
	for _, ext := range c.Raw.FileExtensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = append([]string(nil), defaultRawExtensions...)
	}
	c.Raw.FileExtensions = exts
}

func (c *Config) normalizeZip() {
	c.Zip.NamePrefix = strings.TrimSpace(c.Zip.NamePrefix)
	if c.Zip.NamePrefix == "" {
		c.Zip.NamePrefix = defaultZipNamePrefix
	}
	if c.Zip.MaxMembers <= 0 {
		c.Zip.MaxMembers = defaultZipMaxMembers
	}
}

func (c *Config) normalizeWorkers() {
	if c.Workers.PollInterval <= 0 {
		c.Workers.PollInterval = defaultPollInterval
	}
	if c.Workers.ErrorRetryInterval <= 0 {
		c.Workers.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workers.HeartbeatInterval <= 0 {
		c.Workers.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workers.LivenessWindow <= 0 {
		c.Workers.LivenessWindow = defaultLivenessWindow
	}
	if c.Workers.CancelWindow <= 0 {
		c.Workers.CancelWindow = defaultCancelWindow
	}
}

func (c *Config) normalizeIndex() {
	if c.Index.RebuildInterval <= 0 {
		c.Index.RebuildInterval = defaultIndexInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}
}
