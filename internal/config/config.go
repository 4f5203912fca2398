// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrUnknownNetwork defines that network name does not match any known chain params.
var ErrUnknownNetwork = errors.New("unknown network")

// Config holds engine configuration.
type Config struct {
	Network     string      `mapstructure:"network"`
	Fee         Fee         `mapstructure:"fee"`
	Inscription Inscription `mapstructure:"inscription"`
	Swap        Swap        `mapstructure:"swap"`
	Chain       Chain       `mapstructure:"chain"`
	Log         Log         `mapstructure:"log"`
}

// Fee holds fee refinement settings.
type Fee struct {
	MaxRounds int `mapstructure:"max_rounds"`
	// ChangeThreshold overrides relay dust threshold of change outputs if positive.
	ChangeThreshold int64 `mapstructure:"change_threshold"`
}

// Inscription holds commit/reveal settings.
type Inscription struct {
	Postage int64 `mapstructure:"postage"`
}

// Swap holds atomic swap settings.
type Swap struct {
	PaddingValue int64 `mapstructure:"padding_value"`
	PaddingCount int   `mapstructure:"padding_count"`
}

// Chain holds bitcoind connection and confirmation polling settings.
type Chain struct {
	Host                string        `mapstructure:"host"`
	User                string        `mapstructure:"user"`
	Pass                string        `mapstructure:"pass"`
	DisableTLS          bool          `mapstructure:"disable_tls"`
	ConfirmTimeout      time.Duration `mapstructure:"confirm_timeout"`
	ConfirmPollInterval time.Duration `mapstructure:"confirm_poll_interval"`
}

// Log holds logger settings.
type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

var defaults = map[string]any{
	"network":                     "mainnet",
	"fee.max_rounds":              2,
	"fee.change_threshold":        0,
	"inscription.postage":         546,
	"swap.padding_value":          600,
	"swap.padding_count":          2,
	"chain.host":                  "localhost:8332",
	"chain.user":                  "",
	"chain.pass":                  "",
	"chain.disable_tls":           true,
	"chain.confirm_timeout":       60 * time.Second,
	"chain.confirm_poll_interval": 5 * time.Second,
	"log.level":                   "info",
	"log.pretty":                  false,
}

// Default returns configuration with default values.
func Default() *Config {
	config, err := load(viper.New())
	if err != nil {
		panic(err)
	}

	return config
}

// Load reads configuration from environment and optional file.
// Env files (.env) are loaded into environment, other files are read by extension (yaml, json, toml).
// Environment variables take precedence, with dots replaced by underscores, e.g. FEE_MAX_ROUNDS.
func Load(file string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if file != "" {
		if isEnvFile(file) {
			// godotenv does not override already set variables.
			if err := godotenv.Load(file); err != nil {
				return nil, fmt.Errorf("load env file: %w", err)
			}
		} else {
			v.SetConfigFile(file)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	config := new(Config)
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}

	if config.Fee.MaxRounds < 1 {
		return nil, errors.New("fee.max_rounds must be positive")
	}
	if config.Swap.PaddingCount < 2 {
		return nil, errors.New("swap.padding_count must be at least 2")
	}
	if _, err := config.NetworkParams(); err != nil {
		return nil, err
	}

	return config, nil
}

// NetworkParams returns chain params of the configured network.
func (c *Config) NetworkParams() (*chaincfg.Params, error) {
	switch strings.ToLower(c.Network) {
	case "mainnet", "main":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3", "test":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest", "regression":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, c.Network)
	}
}

func isEnvFile(file string) bool {
	return filepath.Ext(file) == ".env" || filepath.Base(file) == ".env"
}
