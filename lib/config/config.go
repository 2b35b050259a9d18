// Package config loads the simulator configuration from file, environment
// and flags, in that order of increasing precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config describes one simulation run.
type Config struct {
	Pool   PoolConfig `mapstructure:"pool"`
	Script string     `mapstructure:"script"`
	Log    LogConfig  `mapstructure:"log"`
}

// PoolConfig identifies the pool the script runs against.
type PoolConfig struct {
	Token0      string `mapstructure:"token0"`
	Token1      string `mapstructure:"token1"`
	Fee         uint32 `mapstructure:"fee"`
	TickSpacing int    `mapstructure:"tick_spacing"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("pool.token0", "0x0000000000000000000000000000000000000001")
	v.SetDefault("pool.token1", "0x0000000000000000000000000000000000000002")
	v.SetDefault("pool.fee", 3000)
	v.SetDefault("pool.tick_spacing", 60)
	v.SetDefault("script", "script.json")
	v.SetDefault("log.level", "info")
}

// Load reads cfgFile (optional) and overlays CLPOOL_* environment variables
// and any bound flags.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("CLPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}
