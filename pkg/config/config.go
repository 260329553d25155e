// Package config provides a reusable loader for follower configuration
// files and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"shardfollower/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for a follower process. It mirrors
// the structure of the YAML files under cmd/follower/config. Every field
// carries both a mapstructure tag (for viper's env/flag-aware unmarshal)
// and a matching yaml tag (for ValidateFile's strict decode).
type Config struct {
	Gateway struct {
		URL           string        `mapstructure:"url" yaml:"url" json:"url"`
		RoundDuration time.Duration `mapstructure:"round_duration" yaml:"round_duration" json:"round_duration"`
		MaxLookBehind uint64        `mapstructure:"max_look_behind" yaml:"max_look_behind" json:"max_look_behind"`
	} `mapstructure:"gateway" yaml:"gateway" json:"gateway"`

	Delivery struct {
		WaitForFinalizedCrossShardSmartContractResults bool `mapstructure:"wait_for_finalized_cross_shard_scrs" yaml:"wait_for_finalized_cross_shard_scrs" json:"wait_for_finalized_cross_shard_scrs"`
		NotifyEmptyBlocks                              bool `mapstructure:"notify_empty_blocks" yaml:"notify_empty_blocks" json:"notify_empty_blocks"`
		IncludeCrossShardStartedTransactions           bool `mapstructure:"include_cross_shard_started_transactions" yaml:"include_cross_shard_started_transactions" json:"include_cross_shard_started_transactions"`
	} `mapstructure:"delivery" yaml:"delivery" json:"delivery"`

	Reconciler struct {
		GracePeriod time.Duration `mapstructure:"grace_period" yaml:"grace_period" json:"grace_period"`
	} `mapstructure:"reconciler" yaml:"reconciler" json:"reconciler"`

	Schedule struct {
		Interval time.Duration `mapstructure:"interval" yaml:"interval" json:"interval"`
	} `mapstructure:"schedule" yaml:"schedule" json:"schedule"`

	HTTP struct {
		ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr" json:"listen_addr"`
	} `mapstructure:"http" yaml:"http" json:"http"`

	Logging struct {
		Level string `mapstructure:"level" yaml:"level" json:"level"`
		File  string `mapstructure:"file" yaml:"file" json:"file"`
	} `mapstructure:"logging" yaml:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment-specific
// overrides. The resulting configuration is stored in AppConfig and
// returned.
//
// The function uses the provided environment name to merge additional
// config files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/follower/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}
	if err := ValidateFile(viper.ConfigFileUsed()); err != nil {
		return nil, err
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up from .env, loaded by cmd/follower via godotenv

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the FOLLOWER_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("FOLLOWER_ENV", ""))
}

// ValidateFile strict-decodes the YAML file at path against Config's shape,
// rejecting unknown keys. viper's own merge is lenient about typos in a
// config file (an unrecognized key is silently dropped); this catches that
// case loudly before the value is ever merged in.
func ValidateFile(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return utils.Wrap(err, "open config file")
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var strict Config
	if err := dec.Decode(&strict); err != nil {
		return utils.Wrap(err, fmt.Sprintf("strict-parse %s", path))
	}
	return nil
}
