// pkg/app/factory.go
package app

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/vulntor/xploit/pkg/config"
	"github.com/vulntor/xploit/pkg/logging"
)

// Factory builds an App from command-line flags and a config file.
type Factory interface {
	Create(flags *pflag.FlagSet, configFile string, opts ...Option) (*App, error)
}

// DefaultFactory configures logging and loads the layered configuration
// before building the App.
type DefaultFactory struct{}

// Create configures global logging from the verbosity flag, loads the
// configuration (defaults, file, env, flags) and returns an App that still
// needs Init.
func (f *DefaultFactory) Create(flags *pflag.FlagSet, configFile string, opts ...Option) (*App, error) {
	logging.ConfigureGlobal(f.RuntimeLogLevel(flags))

	mgr := config.NewManager()
	if err := mgr.Load(config.DefaultSources(configFile, flags, false)...); err != nil {
		return nil, err
	}
	cfg := mgr.Get()

	// An explicit verbosity wins over the configured level.
	if verbosity(flags) == 0 {
		if err := logging.ConfigureGlobalLogging(cfg.Log.Level, cfg.Log.Format); err != nil {
			return nil, err
		}
	}

	opts = append([]Option{WithConfigManager(mgr), WithConfig(&cfg)}, opts...)
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logging.SetLogWriter(f)
		logging.ConfigureGlobal(zerolog.GlobalLevel())
		opts = append(opts, withCloser(f))
	}
	return New(opts...), nil
}

// CreateWithNoConfig builds an App from defaults and the environment only.
func (f *DefaultFactory) CreateWithNoConfig(opts ...Option) (*App, error) {
	return f.Create(nil, "", opts...)
}

// RuntimeLogLevel maps the repeatable -v flag to a log level: warn by
// default, then info, debug and trace.
func (f *DefaultFactory) RuntimeLogLevel(flags *pflag.FlagSet) zerolog.Level {
	if flags != nil {
		if debug, err := flags.GetBool("debug"); err == nil && debug {
			return zerolog.DebugLevel
		}
	}
	switch verbosity(flags) {
	case 0:
		return zerolog.WarnLevel
	case 1:
		return zerolog.InfoLevel
	case 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

func verbosity(flags *pflag.FlagSet) int {
	if flags == nil {
		return 0
	}
	n, err := flags.GetCount("verbosity")
	if err != nil {
		return 0
	}
	return n
}

func withCloser(c io.Closer) Option {
	return func(a *App) { a.closers = append(a.closers, c) }
}
