// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classmate/classmate/pkg/errutil"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "classmate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FileWithDefaults(t *testing.T) {
	path := writeConfigFile(t, `
discord:
  token: "bot-token"
  owners: ["111", "222"]
database:
  url: "postgres://localhost/classmate"
mapi:
  base_url: "https://mapi.example.edu"
command:
  prefix: "?"
  editable_duration: 45s
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "bot-token", cfg.Discord.Token)
	assert.Equal(t, []string{"111", "222"}, cfg.Discord.Owners)
	assert.Equal(t, "postgres://localhost/classmate", cfg.Database.URL)
	assert.Equal(t, "https://mapi.example.edu", cfg.MAPI.BaseURL)
	assert.Equal(t, "?", cfg.Command.Prefix)
	assert.Equal(t, 45*time.Second, cfg.Command.EditableDuration)

	// Untouched keys keep their defaults.
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Command.UnknownReply)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeConfigFile(t, `
discord:
  token: "from-file"
log:
  level: "info"
`)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("discord.token", "", "")
	flags.String("log.level", "", "")
	require.NoError(t, flags.Parse([]string{"--discord.token=from-flag", "--log.level=debug"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Discord.Token)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/classmate.yaml", nil)
	require.Error(t, err)
	errutil.AssertCodedError(t, err, "CONFIG_FILE_FAILED", "path", "/nonexistent/classmate.yaml")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "discord: [broken")
	_, err := Load(path, nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_FILE_FAILED")
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Discord.Token = "tok"

	t.Run("valid", func(t *testing.T) {
		cfg := valid
		assert.NoError(t, cfg.Validate())
	})
	t.Run("missing token", func(t *testing.T) {
		cfg := valid
		cfg.Discord.Token = ""
		err := cfg.Validate()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})
	t.Run("bad log format", func(t *testing.T) {
		cfg := valid
		cfg.Log.Format = "xml"
		assert.Error(t, cfg.Validate())
	})
	t.Run("negative durations", func(t *testing.T) {
		cfg := valid
		cfg.Command.EditableDuration = -time.Second
		assert.Error(t, cfg.Validate())

		cfg = valid
		cfg.Command.NegativeReplyWindow = -time.Second
		assert.Error(t, cfg.Validate())
	})
}
