// Package config loads process configuration from the environment, with an
// optional YAML file underneath it. Environment variables always win.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Recognized environment keys.
const (
	EnvToken       = "TALLYBOT_TOKEN"
	EnvGuildID     = "TALLYBOT_GUILD_ID"
	EnvTallyFile   = "TALLYBOT_TALLY_FILE"
	EnvOptOutFile  = "TALLYBOT_OPTOUT_FILE"
	EnvIncrement   = "TALLYBOT_INCREMENT"
	EnvJournalFile = "TALLYBOT_JOURNAL_FILE"
)

// Defaults.
const (
	DefaultTallyFile  = "user_reactions.csv"
	DefaultOptOutFile = "ignored_users.csv"
	DefaultIncrement  = 1
)

// Config holds everything the bot needs to start.
type Config struct {
	// Token is the Discord bot token. Required: startup aborts without it.
	Token string `yaml:"token"`

	// GuildID is the guild used for slash command registration. Optional:
	// when empty the opt-out command is not registered and a warning is
	// logged at startup.
	GuildID string `yaml:"guild_id"`

	// TallyFile is the path of the tally CSV table.
	TallyFile string `yaml:"tally_file"`

	// OptOutFile is the path of the opt-out CSV table.
	OptOutFile string `yaml:"optout_file"`

	// Increment is the amount added per qualifying reaction.
	Increment int64 `yaml:"increment"`

	// JournalFile is the path of the SQLite reaction journal.
	// Optional: empty disables the journal.
	JournalFile string `yaml:"journal_file"`
}

// Load builds a Config from the optional YAML file at path (empty path skips
// the file) overlaid with environment variables.
//
// The only fatal condition is a missing token. An unparsable increment is a
// warning and falls back to the default, matching the rest of the bot's
// log-and-continue posture.
func Load(path string) (*Config, error) {
	cfg := &Config{
		TallyFile:  DefaultTallyFile,
		OptOutFile: DefaultOptOutFile,
		Increment:  DefaultIncrement,
	}

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)

	if cfg.Token == "" {
		return nil, fmt.Errorf("bot token is required: set %s", EnvToken)
	}
	if cfg.Increment <= 0 {
		slog.Warn("non-positive increment, using default",
			"increment", cfg.Increment, "default", DefaultIncrement)
		cfg.Increment = DefaultIncrement
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvToken); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv(EnvGuildID); v != "" {
		cfg.GuildID = v
	}
	if v := os.Getenv(EnvTallyFile); v != "" {
		cfg.TallyFile = v
	}
	if v := os.Getenv(EnvOptOutFile); v != "" {
		cfg.OptOutFile = v
	}
	if v := os.Getenv(EnvJournalFile); v != "" {
		cfg.JournalFile = v
	}
	if v := os.Getenv(EnvIncrement); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			slog.Warn("unparsable increment, using default",
				"value", v, "default", DefaultIncrement)
			n = DefaultIncrement
		}
		cfg.Increment = n
	}
}
