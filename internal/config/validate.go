package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Validate verifies semantic constraints that normalization cannot repair.
func (c *Config) Validate() error {
	var problems []string

	if c.Thumbnails.StandardTier >= c.Thumbnails.LargeTier {
		problems = append(problems, fmt.Sprintf(
			"thumbnails.standard_tier (%d) must be smaller than thumbnails.large_tier (%d)",
			c.Thumbnails.StandardTier, c.Thumbnails.LargeTier))
	}
	for key, root := range c.Sources.Roots {
		if strings.TrimSpace(root) == "" {
			problems = append(problems, fmt.Sprintf("sources.roots.%s: empty root directory", key))
			continue
		}
		info, err := os.Stat(root)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				problems = append(problems, fmt.Sprintf("sources.roots.%s: directory %s does not exist", key, root))
			} else {
				problems = append(problems, fmt.Sprintf("sources.roots.%s: %v", key, err))
			}
			continue
		}
		if !info.IsDir() {
			problems = append(problems, fmt.Sprintf("sources.roots.%s: %s is not a directory", key, root))
		}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level: unsupported value %q", c.Logging.Level))
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
}
