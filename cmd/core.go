package cmd

import (
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/autobrr/prunetree/pkg/config"
	"github.com/autobrr/prunetree/pkg/logger"
)

var (
	// Global flags
	FlagLogLevel     = 0
	FlagConfigFile   = "config.yaml"
	FlagConfigFolder = config.GetDefaultConfigDirectory("prunetree", FlagConfigFile)
	FlagLogFile      = "activity.log"
)

// initCore sets up logging and loads the configuration, with changed flags in flags taking
// precedence over the config file and environment.
func initCore(flags *pflag.FlagSet) (*config.Configuration, error) {
	logFile := FlagLogFile
	if logFile != "" && !filepath.IsAbs(logFile) {
		logFile = filepath.Join(FlagConfigFolder, logFile)
	}

	if err := logger.Init(FlagLogLevel, logFile); err != nil {
		return nil, err
	}

	configFile := FlagConfigFile
	if !filepath.IsAbs(configFile) {
		configFile = filepath.Join(FlagConfigFolder, configFile)
	}

	cfg, err := config.Load(config.LoadOptions{
		File:  configFile,
		Flags: flags,
	})
	if err != nil {
		return nil, err
	}

	logger.GetLogger("app").Debugf("Loaded configuration from %s", configFile)
	return cfg, nil
}

// addRunFlags registers the flags that map onto configuration keys.
func addRunFlags(flags *pflag.FlagSet) {
	defaults := config.Defaults()

	flags.String("algorithm", defaults["algorithm"].(string), "Digest algorithm")
	flags.Int("chunk-size", defaults["chunk_size"].(int), "Digest read size in bytes")
	flags.Int64("min-size", defaults["min_size"].(int64), "Files of this size or smaller are skipped")
	flags.Int64("max-size", defaults["max_size"].(int64), "Files of this size or larger are skipped")
	flags.String("exclude", defaults["exclude"].(string), "Exclude paths matching this regular expression")
	flags.Int("updates", defaults["updates"].(int), "Seconds between progress messages while scanning")
	flags.Int("workers", defaults["workers"].(int), "Files digested in parallel")
	flags.Int("digest-rate", defaults["digest_rate"].(int), "Maximum files digested per second, 0 is unlimited")
	flags.Bool("verify", defaults["verify"].(bool), "Compare bytes before linking")
	flags.String("walker", defaults["walker"].(string), "Tree walker: sequential or parallel")
	flags.Int64("max-memory", defaults["max_memory"].(int64), "Abort a root when its grouping grows beyond this many bytes")
	flags.Bool("one-filesystem", defaults["one_filesystem"].(bool), "Skip files on other filesystems")
	flags.String("snapshot-dir", "", "Snapshot directory, defaults to the root")
	flags.String("snapshot-format", defaults["snapshot.format"].(string), "Snapshot format: yaml, json or cbor")
	flags.Bool("no-snapshot", false, "Do not write snapshots")
	flags.String("metrics-textfile", "", "Write Prometheus metrics to this file")
}
