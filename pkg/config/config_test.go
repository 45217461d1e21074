package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "missing.yaml"), SkipEnv: true})
	require.NoError(t, err)

	assert.Equal(t, "xxhash", cfg.Algorithm)
	assert.Equal(t, 118*1024, cfg.ChunkSize)
	assert.Equal(t, int64(4096), cfg.MinSize)
	assert.Equal(t, int64(800*1024*1024), cfg.MaxSize)
	assert.Equal(t, `/lost\+found/`, cfg.Exclude)
	assert.Equal(t, 5, cfg.Updates)
	assert.False(t, cfg.DryRun)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, WalkerSequential, cfg.Walker)
	assert.Equal(t, int64(1_000_000_000), cfg.MaxMemory)
	assert.True(t, cfg.OneFilesystem)
	assert.True(t, cfg.Snapshot.Enabled)
	assert.Equal(t, "yaml", cfg.Snapshot.Format)
	assert.Empty(t, cfg.Filters.Ignore)
}

func TestLoad_Precedence(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
algorithm: sha256
min_size: 1024
workers: 4
snapshot:
  format: json
  compress: true
filters:
  ignore:
    - 'Ext == ".part"'
notifications:
  skip_empty_run: true
  service:
    discord: https://discord.example/webhook
`), 0o644))

	t.Setenv("PRUNETREE_MIN_SIZE", "2048")
	t.Setenv("PRUNETREE_SNAPSHOT__DIR", "/var/lib/prunetree")

	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.Int("workers", 1, "")
	flags.Bool("dry-run", false, "")
	flags.Bool("no-snapshot", false, "")
	flags.String("walker", "sequential", "")
	flags.String("log", "activity.log", "")
	require.NoError(t, flags.Parse([]string{"--workers=8", "--dry-run", "--no-snapshot"}))

	cfg, err := Load(LoadOptions{File: file, Flags: flags})
	require.NoError(t, err)

	assert.Equal(t, "sha256", cfg.Algorithm, "file")
	assert.Equal(t, int64(2048), cfg.MinSize, "env beats file")
	assert.Equal(t, "/var/lib/prunetree", cfg.Snapshot.Dir, "nested env key")
	assert.Equal(t, 8, cfg.Workers, "flag beats file")
	assert.True(t, cfg.DryRun)
	assert.False(t, cfg.Snapshot.Enabled)
	assert.Equal(t, WalkerSequential, cfg.Walker, "unchanged flag keeps default")
	assert.Equal(t, "json", cfg.Snapshot.Format)
	assert.True(t, cfg.Snapshot.Compress)
	assert.Equal(t, []string{`Ext == ".part"`}, cfg.Filters.Ignore)
	assert.True(t, cfg.Notifications.SkipEmptyRun)
	assert.Equal(t, "https://discord.example/webhook", cfg.Notifications.Service.Discord)
}

func TestValidate(t *testing.T) {
	base := func() *Configuration {
		cfg, err := Load(LoadOptions{SkipEnv: true})
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Configuration)
	}{
		{"unknown_algorithm", func(c *Configuration) { c.Algorithm = "crc7" }},
		{"zero_chunk", func(c *Configuration) { c.ChunkSize = 0 }},
		{"max_below_min", func(c *Configuration) { c.MaxSize = c.MinSize }},
		{"zero_updates", func(c *Configuration) { c.Updates = 0 }},
		{"zero_workers", func(c *Configuration) { c.Workers = 0 }},
		{"negative_rate", func(c *Configuration) { c.DigestRate = -1 }},
		{"unknown_walker", func(c *Configuration) { c.Walker = "bfs" }},
		{"zero_memory", func(c *Configuration) { c.MaxMemory = 0 }},
		{"unknown_format", func(c *Configuration) { c.Snapshot.Format = "xml" }},
		{"bad_exclude", func(c *Configuration) { c.Exclude = "(" }},
		{"bad_expression", func(c *Configuration) { c.Filters.Ignore = []string{"Size +"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "min_size", envKey("PRUNETREE_MIN_SIZE"))
	assert.Equal(t, "snapshot.dir", envKey("PRUNETREE_SNAPSHOT__DIR"))
}
