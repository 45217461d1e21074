package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	perrors "github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/autobrr/prunetree/pkg/digest"
	"github.com/autobrr/prunetree/pkg/expression"
	"github.com/autobrr/prunetree/pkg/regex"
	"github.com/autobrr/prunetree/pkg/snapshot"
)

const (
	EnvPrefix = "PRUNETREE_"

	WalkerSequential = "sequential"
	WalkerParallel   = "parallel"
)

type Configuration struct {
	Algorithm     string              `koanf:"algorithm"`
	ChunkSize     int                 `koanf:"chunk_size"`
	MinSize       int64               `koanf:"min_size"`
	MaxSize       int64               `koanf:"max_size"`
	Exclude       string              `koanf:"exclude"`
	Updates       int                 `koanf:"updates"`
	DryRun        bool                `koanf:"dry_run"`
	Workers       int                 `koanf:"workers"`
	DigestRate    int                 `koanf:"digest_rate"`
	Verify        bool                `koanf:"verify"`
	Walker        string              `koanf:"walker"`
	MaxMemory     int64               `koanf:"max_memory"`
	OneFilesystem bool                `koanf:"one_filesystem"`
	Snapshot      SnapshotConfig      `koanf:"snapshot"`
	Metrics       MetricsConfig       `koanf:"metrics"`
	Filters       FilterConfiguration `koanf:"filters"`
	Notifications NotificationsConfig `koanf:"notifications"`
}

type SnapshotConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Dir      string `koanf:"dir"`
	Format   string `koanf:"format"`
	Compress bool   `koanf:"compress"`
}

type MetricsConfig struct {
	Textfile string `koanf:"textfile"`
}

// Defaults are the built-in values, the lowest precedence source.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"algorithm":                     digest.DefaultAlgorithm,
		"chunk_size":                    digest.DefaultChunkSize,
		"min_size":                      int64(4096),
		"max_size":                      int64(800 * 1024 * 1024),
		"exclude":                       `/lost\+found/`,
		"updates":                       5,
		"dry_run":                       false,
		"workers":                       1,
		"digest_rate":                   0,
		"verify":                        false,
		"walker":                        WalkerSequential,
		"max_memory":                    int64(1_000_000_000),
		"one_filesystem":                true,
		"snapshot.enabled":              true,
		"snapshot.dir":                  "",
		"snapshot.format":               snapshot.FormatYAML,
		"snapshot.compress":             false,
		"metrics.textfile":              "",
		"filters.ignore":                []string{},
		"notifications.detailed":        false,
		"notifications.skip_empty_run":  false,
		"notifications.service.discord": "",
	}
}

// flagKeys maps command line flag names onto configuration keys.
var flagKeys = map[string]string{
	"algorithm":        "algorithm",
	"chunk-size":       "chunk_size",
	"min-size":         "min_size",
	"max-size":         "max_size",
	"exclude":          "exclude",
	"updates":          "updates",
	"dry-run":          "dry_run",
	"workers":          "workers",
	"digest-rate":      "digest_rate",
	"verify":           "verify",
	"walker":           "walker",
	"max-memory":       "max_memory",
	"one-filesystem":   "one_filesystem",
	"snapshot-dir":     "snapshot.dir",
	"snapshot-format":  "snapshot.format",
	"metrics-textfile": "metrics.textfile",
}

type LoadOptions struct {
	// File is the YAML configuration file. A missing file is not an error.
	File string
	// Flags are applied last; only flags the user changed override other sources.
	Flags *pflag.FlagSet
	// SkipEnv ignores PRUNETREE_ environment variables.
	SkipEnv bool
}

// Load merges defaults, the config file, PRUNETREE_ environment variables and flags, in that
// order, and validates the result.
func Load(opts LoadOptions) (*Configuration, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, perrors.Wrap(err, "load defaults")
	}

	if opts.File != "" {
		if _, err := os.Stat(opts.File); err == nil {
			if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
				return nil, perrors.Wrapf(err, "load config file %s", opts.File)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, perrors.Wrapf(err, "stat config file %s", opts.File)
		}
	}

	if !opts.SkipEnv {
		if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
			return nil, perrors.Wrap(err, "load environment")
		}
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithValue(opts.Flags, ".", k, flagValue), nil); err != nil {
			return nil, perrors.Wrap(err, "load flags")
		}
	}

	cfg := &Configuration{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, perrors.Wrap(err, "unmarshal configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the run could not honour.
func (c *Configuration) Validate() error {
	var errs []error

	if !digest.Supported(c.Algorithm) {
		errs = append(errs, fmt.Errorf("algorithm %q is not one of: %s", c.Algorithm,
			strings.Join(digest.Algorithms(), ", ")))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize))
	}
	if c.MinSize < 0 {
		errs = append(errs, fmt.Errorf("min_size must not be negative, got %d", c.MinSize))
	}
	if c.MaxSize <= c.MinSize {
		errs = append(errs, fmt.Errorf("max_size (%d) must be larger than min_size (%d)", c.MaxSize, c.MinSize))
	}
	if c.Updates <= 0 {
		errs = append(errs, fmt.Errorf("updates must be at least 1 second, got %d", c.Updates))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.DigestRate < 0 {
		errs = append(errs, fmt.Errorf("digest_rate must not be negative, got %d", c.DigestRate))
	}
	if c.Walker != WalkerSequential && c.Walker != WalkerParallel {
		errs = append(errs, fmt.Errorf("walker must be %q or %q, got %q", WalkerSequential, WalkerParallel, c.Walker))
	}
	if c.MaxMemory <= 0 {
		errs = append(errs, fmt.Errorf("max_memory must be positive, got %d", c.MaxMemory))
	}
	if !snapshot.SupportedFormat(c.Snapshot.Format) {
		errs = append(errs, fmt.Errorf("snapshot.format %q is not supported", c.Snapshot.Format))
	}
	if c.Exclude != "" {
		if _, err := regex.Compile(c.Exclude); err != nil {
			errs = append(errs, fmt.Errorf("exclude: %w", err))
		}
	}
	if _, err := expression.Compile(c.Filters.Ignore); err != nil {
		errs = append(errs, fmt.Errorf("filters.ignore: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	return nil
}

// GetDefaultConfigDirectory prefers the directory of the executable when it already holds
// filename, then the user config directory.
func GetDefaultConfigDirectory(app string, filename string) string {
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		if _, err := os.Stat(filepath.Join(dir, filename)); err == nil {
			return dir
		}
	}

	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, app)
	}

	return "."
}

/* Private */

// envKey turns PRUNETREE_SNAPSHOT__DIR into snapshot.dir.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func flagValue(name string, value string) (string, interface{}) {
	if name == "no-snapshot" {
		disabled, err := strconv.ParseBool(value)
		if err != nil {
			return "", nil
		}
		return "snapshot.enabled", !disabled
	}

	key, ok := flagKeys[name]
	if !ok {
		return "", nil
	}

	return key, value
}
