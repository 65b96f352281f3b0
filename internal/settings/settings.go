// Package settings loads synconf's own configuration. Values are layered,
// lowest first: built-in defaults, the [tool.synconf] table of pyproject.toml,
// synconf.yaml, SYNCONF_* environment variables and command-line flags.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/phobologic/synconf/internal/symtab"
	"github.com/phobologic/synconf/internal/validate"
)

const (
	// FileName is the settings file looked up in the project directory.
	FileName = "synconf.yaml"
	// PyProject is the pyproject file whose [tool.synconf] table is read.
	PyProject = "pyproject.toml"
	// EnvPrefix prefixes environment overrides, as in SYNCONF_LOG_LEVEL.
	EnvPrefix = "SYNCONF"
)

// Settings holds the resolved tool configuration.
type Settings struct {
	Roots           []string `mapstructure:"roots" yaml:"roots"`
	ValidateType    bool     `mapstructure:"validate_type" yaml:"validate_type"`
	ValidateMapping bool     `mapstructure:"validate_mapping" yaml:"validate_mapping"`
	ValidateExclude []string `mapstructure:"validate_exclude" yaml:"validate_exclude"`
	LogLevel        string   `mapstructure:"log_level" yaml:"log_level"`
	LogFormat       string   `mapstructure:"log_format" yaml:"log_format"`
	EnvFile         string   `mapstructure:"env_file" yaml:"env_file"`
	CacheSize       int      `mapstructure:"cache_size" yaml:"cache_size"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		Roots:           []string{"."},
		ValidateType:    true,
		ValidateMapping: true,
		ValidateExclude: []string{},
		LogLevel:        "warn",
		LogFormat:       "text",
		EnvFile:         ".env",
		CacheSize:       symtab.DefaultCacheSize,
	}
}

// Keys lists every settings key in declaration order.
var Keys = []string{
	"roots",
	"validate_type",
	"validate_mapping",
	"validate_exclude",
	"log_level",
	"log_format",
	"env_file",
	"cache_size",
}

// Load resolves settings for the project in dir. Flags are matched to keys
// by name with dashes for underscores (--log-level binds log_level); only
// flags that were set on the command line take precedence. Relative roots
// and env_file are resolved against dir.
func Load(dir string, flags *pflag.FlagSet) (Settings, error) {
	v := viper.New()
	d := Defaults()
	v.SetDefault("roots", d.Roots)
	v.SetDefault("validate_type", d.ValidateType)
	v.SetDefault("validate_mapping", d.ValidateMapping)
	v.SetDefault("validate_exclude", d.ValidateExclude)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("env_file", d.EnvFile)
	v.SetDefault("cache_size", d.CacheSize)

	table, err := readPyProject(filepath.Join(dir, PyProject))
	if err != nil {
		return Settings{}, err
	}
	if table != nil {
		if err := v.MergeConfigMap(table); err != nil {
			return Settings{}, fmt.Errorf("%s: %w", PyProject, err)
		}
	}

	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.MergeInConfig(); err != nil {
			return Settings{}, fmt.Errorf("reading %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("reading %s: %w", path, err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if flags != nil {
		for _, key := range Keys {
			if f := flags.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Settings{}, err
				}
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decoding settings: %w", err)
	}

	for i, root := range s.Roots {
		s.Roots[i] = resolve(dir, root)
	}
	if s.EnvFile != "" {
		s.EnvFile = resolve(dir, s.EnvFile)
	}
	return s, nil
}

// ValidateOptions returns the validation switches.
func (s Settings) ValidateOptions() validate.Options {
	return validate.Options{
		ValidateType:    s.ValidateType,
		ValidateMapping: s.ValidateMapping,
		Exclude:         s.ValidateExclude,
	}
}

// readPyProject returns the [tool.synconf] table, or nil when the file or
// the table is absent.
func readPyProject(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc struct {
		Tool struct {
			Synconf map[string]any `toml:"synconf"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc.Tool.Synconf, nil
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
