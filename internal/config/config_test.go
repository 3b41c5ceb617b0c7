package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every recognized key for the duration of a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvToken, EnvGuildID, EnvTallyFile, EnvOptOutFile, EnvIncrement, EnvJournalFile} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_MissingTokenIsFatal(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), EnvToken)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvToken, "secret-token")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "secret-token", cfg.Token)
	assert.Equal(t, "", cfg.GuildID)
	assert.Equal(t, DefaultTallyFile, cfg.TallyFile)
	assert.Equal(t, DefaultOptOutFile, cfg.OptOutFile)
	assert.Equal(t, int64(DefaultIncrement), cfg.Increment)
	assert.Equal(t, "", cfg.JournalFile)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvToken, "secret-token")
	t.Setenv(EnvGuildID, "123456789")
	t.Setenv(EnvTallyFile, "/data/tallies.csv")
	t.Setenv(EnvOptOutFile, "/data/ignored.csv")
	t.Setenv(EnvIncrement, "5")
	t.Setenv(EnvJournalFile, "/data/journal.db")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "123456789", cfg.GuildID)
	assert.Equal(t, "/data/tallies.csv", cfg.TallyFile)
	assert.Equal(t, "/data/ignored.csv", cfg.OptOutFile)
	assert.Equal(t, int64(5), cfg.Increment)
	assert.Equal(t, "/data/journal.db", cfg.JournalFile)
}

func TestLoad_UnparsableIncrementFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"not a number", "five"},
		{"trailing garbage", "5x"},
		{"float", "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(EnvToken, "secret-token")
			t.Setenv(EnvIncrement, tt.value)

			cfg, err := Load("")
			require.NoError(t, err, "unparsable increment is a warning, not an error")
			assert.Equal(t, int64(DefaultIncrement), cfg.Increment)
		})
	}
}

func TestLoad_NonPositiveIncrementFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvToken, "secret-token")
	t.Setenv(EnvIncrement, "-3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultIncrement), cfg.Increment)
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
token: file-token
guild_id: "987"
tally_file: /file/tallies.csv
increment: 3
journal_file: /file/journal.db
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Token)
	assert.Equal(t, "987", cfg.GuildID)
	assert.Equal(t, "/file/tallies.csv", cfg.TallyFile)
	assert.Equal(t, DefaultOptOutFile, cfg.OptOutFile, "unset file keys keep defaults")
	assert.Equal(t, int64(3), cfg.Increment)
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("token: file-token\nincrement: 3\n"), 0o644))

	t.Setenv(EnvToken, "env-token")
	t.Setenv(EnvIncrement, "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Token)
	assert.Equal(t, int64(7), cfg.Increment)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvToken, "secret-token")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_MalformedFileErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvToken, "secret-token")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("token: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
