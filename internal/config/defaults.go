package config

const (
	defaultCacheRoot          = "~/.local/share/gallerina/cache"
	defaultDataDir            = "~/.local/share/gallerina/data"
	defaultLogDir             = "~/.local/share/gallerina/logs"
	defaultZipDir             = "~/.local/share/gallerina/zips"
	defaultAPIBind            = "127.0.0.1:8614"
	defaultProtectedMarker    = ".protected"
	defaultStandardTier       = 150
	defaultLargeTier          = 750
	defaultJPEGQuality        = 85
	defaultRawDecoderBinary   = "dcraw"
	defaultRawDecodeTimeout   = 120
	defaultZipNamePrefix      = "gallerina"
	defaultZipMaxMembers      = 2000
	defaultPollInterval       = 3
	defaultErrorRetryInterval = 10
	defaultHeartbeatInterval  = 15
	defaultLivenessWindow     = 45
	defaultCancelWindow       = 1800
	defaultIndexInterval      = 900
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
)

var defaultRawExtensions = []string{".nef", ".cr2", ".cr3", ".arw", ".dng", ".orf", ".raf", ".rw2"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheRoot: defaultCacheRoot,
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			ZipDir:    defaultZipDir,
			APIBind:   defaultAPIBind,
		},
		Sources: Sources{
			Roots:           map[string]string{},
			ProtectedMarker: defaultProtectedMarker,
		},
		Thumbnails: Thumbnails{
			StandardTier: defaultStandardTier,
			LargeTier:    defaultLargeTier,
			JPEGQuality:  defaultJPEGQuality,
		},
		Raw: Raw{
			DecoderBinary:  defaultRawDecoderBinary,
			DecodeTimeout:  defaultRawDecodeTimeout,
			FileExtensions: append([]string(nil), defaultRawExtensions...),
		},
		Zip: Zip{
			NamePrefix: defaultZipNamePrefix,
			MaxMembers: defaultZipMaxMembers,
		},
		Workers: Workers{
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			LivenessWindow:     defaultLivenessWindow,
			CancelWindow:       defaultCancelWindow,
		},
		Index: Index{
			Enabled:         true,
			RebuildInterval: defaultIndexInterval,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
