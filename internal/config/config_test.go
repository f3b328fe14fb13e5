package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/breakwatch/internal/breaks"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
storage:
  path: `+filepath.Join(dir, "breakwatch.bolt")+`
registry:
  path: `+filepath.Join(dir, "active_sessions.json")+`
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 5000, cfg.Server.APIPort)
	require.Equal(t, 9090, cfg.Server.MetricsPort)
	require.Equal(t, "bolt", cfg.Storage.Type)
	require.Equal(t, "info", cfg.Logging.Level)
	require.True(t, cfg.Backup.Enabled)
	require.Equal(t, 14, cfg.Backup.Keep)

	policies, err := cfg.Policies()
	require.NoError(t, err)
	require.Equal(t, breaks.Policy{MaxPerDay: 2, MaxDuration: time.Minute}, policies[breaks.BreakTakeout])
	require.Equal(t, breaks.Policy{MaxPerDay: 8, MaxDuration: 5 * time.Minute}, policies[breaks.BreakSmoking])
	require.Equal(t, breaks.Policy{MaxPerDay: 2, MaxDuration: 15 * time.Minute}, policies[breaks.BreakRestroom])
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
server:
  api_port: 8080
storage:
  path: `+filepath.Join(dir, "breakwatch.bolt")+`
registry:
  path: `+filepath.Join(dir, "active_sessions.json")+`
breaks:
  smoking:
    max_per_day: 4
    max_duration: 10m
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.APIPort)
	require.Equal(t, "debug", cfg.Logging.Level)

	policies, err := cfg.Policies()
	require.NoError(t, err)
	require.Equal(t, breaks.Policy{MaxPerDay: 4, MaxDuration: 10 * time.Minute}, policies[breaks.BreakSmoking])
	// Unmentioned types keep their defaults.
	require.Equal(t, breaks.Policy{MaxPerDay: 2, MaxDuration: time.Minute}, policies[breaks.BreakTakeout])
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BREAKWATCH_STORAGE_PATH", filepath.Join(dir, "breakwatch.bolt"))
	t.Setenv("BREAKWATCH_REGISTRY_PATH", filepath.Join(dir, "active_sessions.json"))

	cfg, err := Load(filepath.Join(dir, "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, 5000, cfg.Server.APIPort)
	require.Equal(t, filepath.Join(dir, "breakwatch.bolt"), cfg.Storage.Path)
}

func TestValidateRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	base := `
storage:
  path: ` + filepath.Join(dir, "breakwatch.bolt") + `
registry:
  path: ` + filepath.Join(dir, "active_sessions.json") + `
`

	cases := []struct {
		name    string
		content string
	}{
		{
			name: "bad api port",
			content: base + `
server:
  api_port: 70000
`,
		},
		{
			name: "unknown storage type",
			content: `
storage:
  type: sqlite
registry:
  path: ` + filepath.Join(dir, "active_sessions.json") + `
`,
		},
		{
			name: "bad duration",
			content: base + `
breaks:
  restroom:
    max_duration: fifteen
`,
		},
		{
			name: "negative max per day",
			content: base + `
breaks:
  takeout:
    max_per_day: -1
`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}
