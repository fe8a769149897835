// Package config loads heapdb configuration from a yaml file and HEAPDB_ prefixed environment variables.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
}

type StorageConfig struct {
	DataDir            string `mapstructure:"data_dir"`
	PageSize           int    `mapstructure:"page_size"`
	BufferPoolPages    int    `mapstructure:"buffer_pool_pages"`
	DeadlockIntervalMs int    `mapstructure:"deadlock_interval_ms"`

	// ScanErrorPolicy is either skip or abort.
	ScanErrorPolicy string `mapstructure:"scan_error_policy"`

	// RegistryFile defaults to registry.yaml under DataDir.
	RegistryFile string `mapstructure:"registry_file"`
	Fsync        bool   `mapstructure:"fsync"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir:            "./data",
			PageSize:           4096,
			BufferPoolPages:    50,
			DeadlockIntervalMs: 2000,
			ScanErrorPolicy:    "skip",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads the config file at configPath. If configPath is empty heapdb.yaml is searched in the working
// directory, $HOME/.heapdb and /etc/heapdb, and defaults are used if it is not found anywhere.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	cfg := Default()
	v.SetDefault("storage.data_dir", cfg.Storage.DataDir)
	v.SetDefault("storage.page_size", cfg.Storage.PageSize)
	v.SetDefault("storage.buffer_pool_pages", cfg.Storage.BufferPoolPages)
	v.SetDefault("storage.deadlock_interval_ms", cfg.Storage.DeadlockIntervalMs)
	v.SetDefault("storage.scan_error_policy", cfg.Storage.ScanErrorPolicy)
	v.SetDefault("storage.registry_file", cfg.Storage.RegistryFile)
	v.SetDefault("storage.fsync", cfg.Storage.Fsync)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.output", cfg.Log.Output)

	v.SetEnvPrefix("HEAPDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %v", configPath)
		}
	} else {
		v.SetConfigName("heapdb")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.heapdb")
		v.AddConfigPath("/etc/heapdb")

		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, errors.Wrap(err, "read config")
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	if cfg.Storage.RegistryFile == "" {
		cfg.Storage.RegistryFile = filepath.Join(cfg.Storage.DataDir, "registry.yaml")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Storage.DataDir == "" {
		return errors.New("data_dir must be set")
	}
	if c.Storage.PageSize <= 0 || c.Storage.PageSize%512 != 0 {
		return errors.Errorf("page_size must be a positive multiple of 512, got %d", c.Storage.PageSize)
	}
	if c.Storage.BufferPoolPages < 1 {
		return errors.Errorf("buffer_pool_pages must be at least 1, got %d", c.Storage.BufferPoolPages)
	}
	if c.Storage.DeadlockIntervalMs < 1 {
		return errors.Errorf("deadlock_interval_ms must be positive, got %d", c.Storage.DeadlockIntervalMs)
	}

	switch strings.ToLower(c.Storage.ScanErrorPolicy) {
	case "skip", "abort":
	default:
		return errors.Errorf("scan_error_policy must be skip or abort, got %q", c.Storage.ScanErrorPolicy)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.Errorf("invalid log level %q", c.Log.Level)
	}
	return nil
}

func (c *Config) DeadlockInterval() time.Duration {
	return time.Duration(c.Storage.DeadlockIntervalMs) * time.Millisecond
}
