// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	KeyFile    string
	KeyHex     string
	ChainID    uint64
	Vault      string
	TickLower  int
	TickUpper  int
	Amount0Min string
	Amount1Min string
	TTL        uint64
	Deadline   uint64
	OrderFile  string
	Signature  string
	Out        string
	LogLevel   string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ORDERSIGNER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("ttl", uint64(3600))
	v.SetDefault("amount0-min", "0")
	v.SetDefault("amount1-min", "0")
	v.SetDefault("out", "")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("ordersigner")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		KeyFile:    v.GetString("key-file"),
		KeyHex:     v.GetString("key"),
		ChainID:    v.GetUint64("chain-id"),
		Vault:      v.GetString("vault"),
		TickLower:  v.GetInt("tick-lower"),
		TickUpper:  v.GetInt("tick-upper"),
		Amount0Min: v.GetString("amount0-min"),
		Amount1Min: v.GetString("amount1-min"),
		TTL:        v.GetUint64("ttl"),
		Deadline:   v.GetUint64("deadline"),
		OrderFile:  v.GetString("order"),
		Signature:  v.GetString("signature"),
		Out:        v.GetString("out"),
		LogLevel:   v.GetString("log-level"),
	}

	return cfg, nil
}
