package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chore-planner/internal/service"
)

var keys = []string{
	"TELEGRAM_TOKEN", "BOT_DISABLED", "DATABASE_URL", "AUTO_ASSIGN_SCHEDULE",
	"PRIORITY_WEIGHTS", "PHOTO_DIR", "LOG_LEVEL", "LOG_FORMAT", "CONFIG_FILE",
}

// unsetAll removes every key for the test and restores them afterwards.
func unsetAll(t *testing.T) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_Defaults(t *testing.T) {
	unsetAll(t)
	t.Setenv("TELEGRAM_TOKEN", " token ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "token", cfg.TelegramToken)
	assert.Equal(t, "chore_planner.db", cfg.DatabaseURL)
	assert.Equal(t, "0 0 6 * * MON", cfg.AutoAssignSchedule)
	assert.Equal(t, service.DefaultPriorityWeights(), cfg.PriorityWeights)
	assert.Equal(t, "photos", cfg.PhotoDir)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_TokenRequiredUnlessBotDisabled(t *testing.T) {
	unsetAll(t)
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("BOT_DISABLED", "true")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.BotDisabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	unsetAll(t)
	t.Setenv("BOT_DISABLED", "1")
	t.Setenv("DATABASE_URL", "/var/lib/chores.db")
	t.Setenv("AUTO_ASSIGN_SCHEDULE", "")
	t.Setenv("PRIORITY_WEIGHTS", "1, 4, 9")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/chores.db", cfg.DatabaseURL)
	assert.Empty(t, cfg.AutoAssignSchedule, "an empty schedule disables the job")
	assert.Equal(t, service.PriorityWeights{Low: 1, Medium: 4, High: 9}, cfg.PriorityWeights)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoad_ConfigFile(t *testing.T) {
	unsetAll(t)
	path := filepath.Join(t.TempDir(), "planner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url: from-file.db
auto_assign_schedule: "0 30 7 * * SUN"
priority_weights:
  low: 2
  medium: 5
  high: 10
photo_dir: /srv/photos
`), 0o644))

	t.Setenv("BOT_DISABLED", "true")
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DATABASE_URL", "from-env.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.DatabaseURL, "environment wins over the file")
	assert.Equal(t, "0 30 7 * * SUN", cfg.AutoAssignSchedule)
	assert.Equal(t, service.PriorityWeights{Low: 2, Medium: 5, High: 10}, cfg.PriorityWeights)
	assert.Equal(t, "/srv/photos", cfg.PhotoDir)
}

func TestLoad_BadConfigFile(t *testing.T) {
	unsetAll(t)
	t.Setenv("BOT_DISABLED", "true")

	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "planner.yaml")
	require.NoError(t, os.WriteFile(path, []byte("unknown_key: 1\n"), 0o644))
	t.Setenv("CONFIG_FILE", path)
	_, err = Load()
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("priority_weights: {low: 3, medium: 2, high: 1}\n"), 0o644))
	_, err = Load()
	assert.Error(t, err, "weights out of order")
}

func TestParsePriorityWeights(t *testing.T) {
	tests := []struct {
		raw     string
		want    service.PriorityWeights
		wantErr bool
	}{
		{raw: "1,2,3", want: service.PriorityWeights{Low: 1, Medium: 2, High: 3}},
		{raw: " 2 , 3 , 5 ", want: service.PriorityWeights{Low: 2, Medium: 3, High: 5}},
		{raw: "1,2", wantErr: true},
		{raw: "1,2,3,4", wantErr: true},
		{raw: "a,b,c", wantErr: true},
		{raw: "1,1,2", wantErr: true},
		{raw: "0,1,2", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParsePriorityWeights(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
