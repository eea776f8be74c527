package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/agusx1211/contentstat/internal/contents"
	"github.com/agusx1211/contentstat/internal/fetch"
)

const (
	configName = ".contentstat"
	envPrefix  = "CONTENTSTAT"

	formatText = "text"
	formatYAML = "yaml"
)

// config holds the settings of one invocation. Flags override the
// environment, which overrides the config file, which overrides defaults.
type config struct {
	Mirror     string        `mapstructure:"mirror"`
	Dist       string        `mapstructure:"dist"`
	Component  string        `mapstructure:"component"`
	Input      string        `mapstructure:"input"`
	Top        int           `mapstructure:"top"`
	Mode       string        `mapstructure:"mode"`
	Files      bool          `mapstructure:"files"`
	ToFile     bool          `mapstructure:"to-file"`
	OutputDir  string        `mapstructure:"output-dir"`
	BaseName   string        `mapstructure:"base-name"`
	NoPrint    bool          `mapstructure:"no-print"`
	Format     string        `mapstructure:"format"`
	Include    []string      `mapstructure:"include"`
	Exclude    []string      `mapstructure:"exclude"`
	IgnoreFile string        `mapstructure:"ignore-file"`
	Timeout    time.Duration `mapstructure:"timeout"`
	LogLevel   string        `mapstructure:"log-level"`
	AnyArch    bool          `mapstructure:"any-arch"`
	CacheDir   string        `mapstructure:"cache-dir"`
}

func registerFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Config file (default: ./"+configName+".yaml, then ~/"+configName+".yaml)")
	fs.String("mirror", fetch.DefaultMirror, "Debian mirror to download Contents indexes from")
	fs.String("dist", fetch.DefaultDist, "Distribution to read (stable, bookworm, sid, ...)")
	fs.String("component", fetch.DefaultComponent, "Archive area to read (main, contrib, non-free)")
	fs.StringP("input", "i", "", "Read the Contents index from a local file instead of the mirror (single architecture only)")
	fs.IntP("top", "n", contents.DefaultTop, "Number of packages to list")
	fs.String("mode", contents.ModePattern.String(), "Line tokenizer: pattern (with plain fallback) or plain")
	fs.Bool("files", false, "Track and report the full file list of every listed package")
	fs.BoolP("to-file", "f", false, "Also write each report to <output-dir>/<base-name>_<arch>.<ext>")
	fs.StringP("output-dir", "o", ".", "Directory reports are written to (only used with --to-file)")
	fs.String("base-name", "contents", "Report file name prefix (only used with --to-file)")
	fs.Bool("no-print", false, "Do not print reports to stdout")
	fs.String("format", formatText, "Report format: text or yaml")
	fs.StringSlice("include", nil, "Only count file paths matching these glob patterns (** supported)")
	fs.StringSlice("exclude", nil, "Do not count file paths matching these glob patterns (** supported)")
	fs.String("ignore-file", "", "File of gitignore-style patterns for file paths not to count")
	fs.Duration("timeout", fetch.DefaultTimeout, "Timeout for each download")
	fs.String("log-level", "warn", "Log level: debug, info, warn or error")
	fs.Bool("any-arch", false, "Skip the architecture name check")
	fs.String("cache-dir", "", "Directory for the discovered architecture names (default: the user cache directory)")
}

// loadConfig merges defaults, the config file, CONTENTSTAT_* variables and
// the flags set on fs.
func loadConfig(fs *pflag.FlagSet) (*config, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *config) validate() error {
	if _, err := contents.ParseMode(c.Mode); err != nil {
		return err
	}
	format, ok := normalizeFormat(c.Format)
	if !ok {
		return fmt.Errorf("invalid format %q (expected text or yaml)", c.Format)
	}
	c.Format = format
	if c.CacheDir == "" {
		c.CacheDir = fetch.DefaultCacheDir()
	}
	if c.Top < 0 {
		return fmt.Errorf("invalid top %d: must not be negative", c.Top)
	}
	if c.ToFile && strings.TrimSpace(c.BaseName) == "" {
		return fmt.Errorf("base-name must not be empty with --to-file")
	}
	if strings.ContainsRune(c.BaseName, filepath.Separator) {
		return fmt.Errorf("base-name %q must not contain a path separator", c.BaseName)
	}
	return nil
}

func normalizeFormat(format string) (string, bool) {
	switch strings.TrimSpace(strings.ToLower(format)) {
	case "", formatText, "txt", "table":
		return formatText, true
	case formatYAML, "yml":
		return formatYAML, true
	default:
		return "", false
	}
}

func (c *config) extension() string {
	if c.Format == formatYAML {
		return "yaml"
	}
	return "txt"
}
