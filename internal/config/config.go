// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

// Package config loads bot configuration from a YAML file with command-line
// flag overrides.
package config

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the full runtime configuration.
type Config struct {
	Discord  DiscordConfig  `koanf:"discord"`
	Database DatabaseConfig `koanf:"database"`
	MAPI     MAPIConfig     `koanf:"mapi"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Command  CommandConfig  `koanf:"command"`
}

// DiscordConfig configures the gateway connection.
type DiscordConfig struct {
	Token  string   `koanf:"token"`
	Owners []string `koanf:"owners"`
	// SupportInvite is mentioned in unexpected-error replies.
	SupportInvite string `koanf:"support_invite"`
}

// DatabaseConfig configures the settings store. An empty URL selects the
// in-memory provider.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// MAPIConfig configures the student-information API client.
type MAPIConfig struct {
	BaseURL string `koanf:"base_url"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format"` // json or text
	Level  string `koanf:"level"`
}

// MetricsConfig configures the Prometheus listener. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// CommandConfig tunes the dispatch engine.
type CommandConfig struct {
	Prefix              string        `koanf:"prefix"`
	UnknownReply        bool          `koanf:"unknown_reply"`
	EditableDuration    time.Duration `koanf:"editable_duration"`
	NegativeReplyWindow time.Duration `koanf:"negative_reply_window"`
	MatchesCeiling      int           `koanf:"matches_ceiling"`
}

// Default returns the configuration used when a key is absent from both the
// file and the flags.
func Default() Config {
	return Config{
		Log: LogConfig{Format: "json", Level: "info"},
		Command: CommandConfig{
			Prefix:       "!",
			UnknownReply: true,
		},
	}
}

// Load reads the YAML file at path (optional) and applies flag overrides.
// Flag names use dotted keys, e.g. --discord.token.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").With("path", path).Wrap(err)
		}
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the bot cannot start with.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return oops.Code("CONFIG_INVALID").Errorf("discord.token is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("format", c.Log.Format).
			Errorf("log.format must be json or text")
	}
	if c.Command.EditableDuration < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("command.editable_duration must not be negative")
	}
	if c.Command.NegativeReplyWindow < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("command.negative_reply_window must not be negative")
	}
	if c.Command.MatchesCeiling < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("command.matches_ceiling must not be negative")
	}
	return nil
}
