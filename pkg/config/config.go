// pkg/config/config.go
package config

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

var validate = validator.New()

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex
}

// NewManager creates a Manager backed by a fresh koanf instance.
func NewManager() *Manager {
	return &Manager{
		koanfInstance: koanf.New("."),
		currentConfig: DefaultConfig(),
	}
}

// DefaultConfig returns a new Config populated with hardcoded default values.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Relay: RelayConfig{
			DialTimeout: 10 * time.Second,
		},
		Jobs: JobsConfig{
			ShutdownTimeout: 5 * time.Second,
		},
		Console: ConsoleConfig{
			Prompt: "xploit",
		},
	}
}

// Load merges the given sources in priority order and unmarshals the result.
// With no sources, DefaultSources("", nil, false) is used.
func (m *Manager) Load(sources ...ConfigSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(sources) == 0 {
		sources = DefaultSources("", nil, false)
	}

	ordered := make([]ConfigSource, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})

	for _, src := range ordered {
		if err := src.Load(m.koanfInstance); err != nil {
			return fmt.Errorf("config source %s: %w", src.Name(), err)
		}
	}

	var newCfg Config
	if err := m.koanfInstance.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}

	if err := Validate(newCfg); err != nil {
		return err
	}
	m.currentConfig = newCfg

	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentConfig
}

// Koanf exposes the underlying koanf instance for ad-hoc lookups.
func (m *Manager) Koanf() *koanf.Koanf {
	return m.koanfInstance
}

// Validate checks the struct-level constraints of cfg.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Relay.Proxy.Host != "" && cfg.Relay.Proxy.Version == 0 {
		return fmt.Errorf("invalid configuration: relay.proxy.version is required when relay.proxy.host is set")
	}
	return nil
}

// DefaultConfigAsMap flattens DefaultConfig for koanf's confmap provider.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,
		"log.file":   def.Log.File,

		"relay.dial_timeout":   def.Relay.DialTimeout,
		"relay.proxy.host":     def.Relay.Proxy.Host,
		"relay.proxy.port":     def.Relay.Proxy.Port,
		"relay.proxy.version":  def.Relay.Proxy.Version,
		"relay.proxy.username": def.Relay.Proxy.Username,
		"relay.proxy.password": def.Relay.Proxy.Password,

		"jobs.shutdown_timeout": def.Jobs.ShutdownTimeout,

		"console.no_color": def.Console.NoColor,
		"console.replay":   def.Console.Replay,
		"console.prompt":   def.Console.Prompt,
	}
}

// BindFlags defines command-line flags that map onto configuration keys.
func BindFlags(flags *pflag.FlagSet) {
	defaults := DefaultConfig()

	flags.Bool("debug", false, "Enable debug logging")
	flags.String("log.level", defaults.Log.Level, "Log level (trace, debug, info, warn, error)")
	flags.String("log.format", defaults.Log.Format, "Log format (text, json)")
	flags.Bool("console.no_color", defaults.Console.NoColor, "Disable colored output")
	flags.String("console.replay", "", "Replay file executed before interactive input")
}
