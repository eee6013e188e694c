// Package config loads nbflash settings from flags, a YAML file and JF_
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/nbflash/internal/srs"
)

// EnvPrefix prefixes every environment variable nbflash reads.
const EnvPrefix = "JF_"

// Config holds the settings for one nbflash process.
type Config struct {
	Engine string          `koanf:"engine" validate:"required"`
	Host   string          `koanf:"host" validate:"required"`
	Port   int             `koanf:"port" validate:"min=1,max=65535"`
	Debug  bool            `koanf:"debug"`
	SRS    []time.Duration `koanf:"srs" validate:"min=1,dive,gt=0"`
	Bury   time.Duration   `koanf:"bury" validate:"gt=0"`
	Repos  string          `koanf:"repos" validate:"required"`
}

// Addr returns the host:port the web server binds to.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Table returns the review interval table.
func (c Config) Table() srs.Table {
	return srs.Table(c.SRS)
}

// Flags returns a flag set carrying every setting with its default.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file")
	fs.String("engine", "nbflash.db", "database: a sqlite path, sqlite://path, :memory: or postgres://...")
	fs.String("host", "localhost", "web server host")
	fs.Int("port", 7000, "web server port")
	fs.Bool("debug", false, "enable debug logging")
	fs.DurationSlice("srs", srs.DefaultTable(), "review interval for each level")
	fs.Duration("bury", srs.DefaultIncorrectBury, "delay before an incorrectly answered flashcard is due again")
	fs.String("repos", "repos", "directory for cloned git sources")
	return fs
}

// Load merges flag defaults, the config file named by --config, JF_
// environment variables and explicitly set flags, in increasing order of
// precedence, and validates the result.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, _ := fs.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Unchanged flags only fill in keys no other source set.
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envValue maps JF_SRS=10m,4h to the key "srs" holding a list.
func envValue(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if key == "srs" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return key, parts
	}
	return key, value
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg against its field constraints.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
