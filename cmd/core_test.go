package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/prunetree/pkg/config"
)

// loadWith runs a throwaway command tree with args and returns the configuration initCore built.
func loadWith(t *testing.T, args ...string) *config.Configuration {
	t.Helper()

	FlagConfigFolder = t.TempDir()
	FlagConfigFile = "missing.yaml"
	FlagLogFile = ""

	var cfg *config.Configuration
	root := &cobra.Command{Use: "prunetree", SilenceUsage: true}
	root.PersistentFlags().Bool("dry-run", false, "Dry run mode")

	child := &cobra.Command{
		Use: "run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = initCore(cmd.Flags())
			return err
		},
	}
	addRunFlags(child.Flags())
	root.AddCommand(child)

	root.SetArgs(append([]string{"run"}, args...))
	require.NoError(t, root.Execute())
	require.NotNil(t, cfg)
	return cfg
}

func TestInitCore_DryRunFlag(t *testing.T) {
	assert.False(t, loadWith(t).DryRun)
	assert.True(t, loadWith(t, "--dry-run").DryRun)
}

func TestInitCore_RunFlags(t *testing.T) {
	cfg := loadWith(t, "--min-size", "1024", "--walker", "parallel", "--no-snapshot", "--chunk-size", "4096")

	assert.Equal(t, int64(1024), cfg.MinSize)
	assert.Equal(t, config.WalkerParallel, cfg.Walker)
	assert.False(t, cfg.Snapshot.Enabled)
	assert.Equal(t, 4096, cfg.ChunkSize)
	assert.Equal(t, int64(800*1024*1024), cfg.MaxSize, "unchanged flags keep the default")
}
