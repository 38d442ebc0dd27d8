// Package config loads, normalizes, and validates Gallerina's TOML
// configuration.
//
// Load starts from Default(), overlays the config file when one exists,
// expands tilde paths, and rejects semantically invalid values. The embedded
// sample_config.toml documents every setting and is written out by
// "gallerina config init".
package config
