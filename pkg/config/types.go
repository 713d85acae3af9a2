// pkg/config/types.go
package config

import "time"

// Config is the root configuration structure for xploit.
type Config struct {
	Log     LogConfig     `description:"Logging configuration" koanf:"log"`
	Relay   RelayConfig   `description:"TCP relay configuration" koanf:"relay"`
	Jobs    JobsConfig    `description:"Background job configuration" koanf:"jobs"`
	Console ConsoleConfig `description:"Console configuration" koanf:"console"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `description:"Log level" koanf:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Format string `description:"Log format: json | text" koanf:"format" validate:"omitempty,oneof=json text"`
	File   string `description:"Log file path" koanf:"file"`
}

// RelayConfig holds defaults applied to every relay built by the framework.
type RelayConfig struct {
	DialTimeout time.Duration `description:"Outbound connect timeout (0 = none)" koanf:"dial_timeout" validate:"min=0"`
	Proxy       ProxyConfig   `description:"Default proxy chain" koanf:"proxy"`
}

// ProxyConfig is the default proxy chain. An empty host disables chaining.
type ProxyConfig struct {
	Host     string `description:"SOCKS proxy host" koanf:"host"`
	Port     int    `description:"SOCKS proxy port" koanf:"port" validate:"min=0,max=65535"`
	Version  int    `description:"SOCKS protocol version (4 or 5)" koanf:"version" validate:"oneof=0 4 5"`
	Username string `description:"SOCKS username" koanf:"username"`
	Password string `description:"SOCKS password" koanf:"password"`
}

// JobsConfig holds job registry configuration.
type JobsConfig struct {
	ShutdownTimeout time.Duration `description:"Upper bound for kill-all at shutdown" koanf:"shutdown_timeout" validate:"min=0"`
}

// ConsoleConfig holds console configuration.
type ConsoleConfig struct {
	NoColor bool   `description:"Disable colored output" koanf:"no_color"`
	Replay  string `description:"Replay file executed before interactive input" koanf:"replay"`
	Prompt  string `description:"Prompt prefix" koanf:"prompt"`
}
