package config

import (
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultLogLevel     = "INFO"
	DefaultCatalogKey   = "metadata"
	DefaultMaxBlockSize = 64 * 1024 * 1024
)

// ApplyDefaults fills unset values and normalizes the log level.
func ApplyDefaults(cfg *Config) {
	cfg.Logging.Level = strings.ToUpper(strings.TrimSpace(cfg.Logging.Level))
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}

	if cfg.Catalog.Key == "" {
		cfg.Catalog.Key = DefaultCatalogKey
	}
	if cfg.Catalog.MaxBlockSize == 0 {
		cfg.Catalog.MaxBlockSize = DefaultMaxBlockSize
	}

	for i := range cfg.Clusters {
		cfg.Clusters[i].Backend = strings.ToLower(strings.TrimSpace(cfg.Clusters[i].Backend))
		if cfg.Clusters[i].Options == nil {
			cfg.Clusters[i].Options = map[string]any{}
		}
	}
}

// setDefaults registers every scalar key with viper. Keys unknown to viper
// are not looked up in the environment.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.json", false)
	v.SetDefault("logging.no_terminal", false)

	v.SetDefault("catalog.key", DefaultCatalogKey)
	v.SetDefault("catalog.block_separator", "")
	v.SetDefault("catalog.max_block_size", DefaultMaxBlockSize)
}
