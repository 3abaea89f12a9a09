// Package config loads the file based session configuration used by Init.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/mwantia/blockfile/data"
	"github.com/spf13/viper"
)

// Config represents the complete blockfile configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (BLOCKFILE_*)
//  2. Configuration file (YAML, TOML or JSON)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Catalog controls catalog and block object naming
	Catalog CatalogConfig `mapstructure:"catalog"`

	// Clusters lists the object stores a session can connect to
	Clusters []ClusterConfig `mapstructure:"clusters" validate:"required,min=1,dive"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR FATAL OFF"`

	// File enables rotated file output when set
	File string `mapstructure:"file"`

	// JSON switches to one JSON object per line
	JSON bool `mapstructure:"json"`

	// NoTerminal disables terminal output
	NoTerminal bool `mapstructure:"no_terminal"`
}

// CatalogConfig controls where the catalog lives and how blocks are named.
type CatalogConfig struct {
	// Key is the object name of the persisted catalog
	Key string `mapstructure:"key" validate:"required"`

	// BlockSeparator is placed between path and block offset
	BlockSeparator string `mapstructure:"block_separator"`

	// MaxBlockSize bounds the block size accepted by Create
	MaxBlockSize uint32 `mapstructure:"max_block_size" validate:"gt=0"`
}

// ClusterConfig describes a single object store.
type ClusterConfig struct {
	// Name is referenced by the cluster name passed to Init
	Name string `mapstructure:"name" validate:"required"`

	// Backend selects the gateway implementation
	Backend string `mapstructure:"backend" validate:"required,oneof=memory local sqlite postgres consul s3 aws badger nutsdb"`

	// Options are decoded into the backend specific configuration
	Options map[string]any `mapstructure:"options"`

	// Users holds the credential sets of this cluster
	Users []UserConfig `mapstructure:"users" validate:"dive"`
}

// UserConfig is a named credential set.
type UserConfig struct {
	Name      string `mapstructure:"name" validate:"required"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Token     string `mapstructure:"token"`
	Password  string `mapstructure:"password"`
}

// Load reads, defaults and validates the configuration at configPath.
// All failures wrap data.ErrConfig.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("%w: no configuration file given", data.ErrConfig)
	}

	v := viper.New()
	setupViper(v, configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: configuration file '%s' not found", data.ErrConfig, configPath)
		}
		return nil, fmt.Errorf("%w: failed to read config file: %w", data.ErrConfig, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %w", data.ErrConfig, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", data.ErrConfig, err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: BLOCKFILE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("BLOCKFILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	v.SetConfigFile(configPath)
}

// Cluster returns the cluster with the given name.
func (c *Config) Cluster(name string) (*ClusterConfig, error) {
	for i := range c.Clusters {
		if c.Clusters[i].Name == name {
			return &c.Clusters[i], nil
		}
	}
	return nil, fmt.Errorf("%w: cluster '%s' is not configured", data.ErrConfig, name)
}

// User returns the credential set with the given name. A cluster without
// users accepts any name with empty credentials.
func (c *ClusterConfig) User(name string) (*UserConfig, error) {
	if len(c.Users) == 0 {
		return &UserConfig{Name: name}, nil
	}

	for i := range c.Users {
		if c.Users[i].Name == name {
			return &c.Users[i], nil
		}
	}
	return nil, fmt.Errorf("%w: user '%s' is not configured for cluster '%s'", data.ErrConfig, name, c.Name)
}
