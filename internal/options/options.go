// Package options reads process options from flags and COOKIE_IDLE_* environment variables.
package options

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "cookie_idle"

// Options are the process level settings. Game settings live in the store.
type Options struct {
	StorePath   string `mapstructure:"store" validate:"required"`
	LogLevel    string `mapstructure:"log-level" validate:"oneof=debug info warn warning error"`
	MetricsAddr string `mapstructure:"metrics-addr" validate:"omitempty,hostname_port"`
	Display     int    `mapstructure:"display" validate:"gte=0"`
}

// ErrHelp is returned when -h or --help was given
var ErrHelp = pflag.ErrHelp

// DefaultStorePath is options.yaml in the per-user config directory
func DefaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "options.yaml"
	}
	return filepath.Join(dir, "cookie-idle", "options.yaml")
}

// Load parses args (without the program name). Flags win over the environment,
// the environment wins over defaults.
func Load(args []string) (Options, error) {
	fs := pflag.NewFlagSet("cookie-idle", pflag.ContinueOnError)
	fs.StringP("store", "s", DefaultStorePath(), "settings file; .db, .sqlite or .sqlite3 selects SQLite")
	fs.StringP("log-level", "l", "info", "log level (debug|info|warn|error)")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. 127.0.0.1:9464")
	fs.IntP("display", "d", 0, "display to capture")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return Options{}, err
	}

	opts := Options{
		StorePath:   strings.TrimSpace(v.GetString("store")),
		LogLevel:    strings.ToLower(strings.TrimSpace(v.GetString("log-level"))),
		MetricsAddr: strings.TrimSpace(v.GetString("metrics-addr")),
		Display:     v.GetInt("display"),
	}

	if err := validator.New().Struct(opts); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return Options{}, fmt.Errorf("invalid option %s=%v", fe.Field(), fe.Value())
		}
		return Options{}, err
	}
	return opts, nil
}
