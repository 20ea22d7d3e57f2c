// Package config handles configuration management using Viper
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Backend choices for keys.backend
const (
	BackendAuto    = "auto"
	BackendGnome   = "gnome"
	BackendGeneric = "generic"
)

// DefaultAppName is the name advertised to the settings daemon
const DefaultAppName = "PopcornKeys"

// Config represents the application configuration
type Config struct {
	// Media key capture
	Keys KeysConfig `mapstructure:"keys"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`

	// Local event stream for other processes
	IPC IPCConfig `mapstructure:"ipc"`

	// Desktop notifications on key press
	Notify NotifyConfig `mapstructure:"notify"`
}

// KeysConfig contains backend settings
type KeysConfig struct {
	AppName        string `mapstructure:"app_name"`
	Backend        string `mapstructure:"backend"`          // auto, gnome, generic
	Display        string `mapstructure:"display"`          // X display for the generic backend, empty means $DISPLAY
	PollIntervalMs int    `mapstructure:"poll_interval_ms"` // Idle wait of the generic backend loop
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	FileLogging bool   `mapstructure:"file_logging"` // Enable/disable file logging
	LogLevel    string `mapstructure:"log_level"`    // Override LOG_LEVEL env var
}

// IPCConfig contains the unix socket settings
type IPCConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	SocketPath string `mapstructure:"socket_path"` // Empty means the XDG runtime dir
	QueueSize  int    `mapstructure:"queue_size"`  // Per-subscriber buffered events
}

// NotifyConfig contains desktop notification settings
type NotifyConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Keys: KeysConfig{
			AppName:        DefaultAppName,
			Backend:        BackendAuto,
			Display:        "",
			PollIntervalMs: 10,
		},
		Logging: LoggingConfig{
			FileLogging: false,
			LogLevel:    "", // Empty means use LOG_LEVEL env var
		},
		IPC: IPCConfig{
			Enabled:    true,
			SocketPath: "",
			QueueSize:  64,
		},
		Notify: NotifyConfig{
			Enabled: false,
		},
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName("popkeys")
	viper.SetConfigType("toml")

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		viper.AddConfigPath(filepath.Join(xdg.ConfigHome, "popkeys"))
		for _, dir := range xdg.ConfigDirs {
			viper.AddConfigPath(filepath.Join(dir, "popkeys"))
		}
		viper.AddConfigPath(".") // Current directory (lowest priority)
	}

	viper.SetEnvPrefix("POPKEYS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults - need to set individual fields for proper merging
	viper.SetDefault("keys.app_name", DefaultConfig.Keys.AppName)
	viper.SetDefault("keys.backend", DefaultConfig.Keys.Backend)
	viper.SetDefault("keys.display", DefaultConfig.Keys.Display)
	viper.SetDefault("keys.poll_interval_ms", DefaultConfig.Keys.PollIntervalMs)

	viper.SetDefault("logging.file_logging", DefaultConfig.Logging.FileLogging)
	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)

	viper.SetDefault("ipc.enabled", DefaultConfig.IPC.Enabled)
	viper.SetDefault("ipc.socket_path", DefaultConfig.IPC.SocketPath)
	viper.SetDefault("ipc.queue_size", DefaultConfig.IPC.QueueSize)

	viper.SetDefault("notify.enabled", DefaultConfig.Notify.Enabled)

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !(configPathOverride != "" && os.IsNotExist(err)) {
				return fmt.Errorf("error reading config file: %w", err)
			}
		}
		// Config file not found, use defaults
	}

	loaded := &Config{}
	if err := viper.Unmarshal(loaded); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	cfg = loaded
	return nil
}

// Validate checks values that viper cannot type-check
func (c *Config) Validate() error {
	switch strings.ToLower(c.Keys.Backend) {
	case BackendAuto, BackendGnome, BackendGeneric:
	default:
		return fmt.Errorf("invalid keys.backend %q (must be auto, gnome or generic)", c.Keys.Backend)
	}
	if strings.TrimSpace(c.Keys.AppName) == "" {
		return fmt.Errorf("keys.app_name must not be empty")
	}
	if c.Keys.PollIntervalMs <= 0 {
		return fmt.Errorf("keys.poll_interval_ms must be positive, got %d", c.Keys.PollIntervalMs)
	}
	if c.IPC.QueueSize <= 0 {
		return fmt.Errorf("ipc.queue_size must be positive, got %d", c.IPC.QueueSize)
	}
	return nil
}

// PollInterval returns keys.poll_interval_ms as a duration
func (k KeysConfig) PollInterval() time.Duration {
	return time.Duration(k.PollIntervalMs) * time.Millisecond
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		// Return defaults if not initialized
		d := DefaultConfig
		return &d
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// Watch reloads the configuration whenever the file changes and hands the new
// value to onChange. Invalid files are reported through onError and ignored.
func Watch(onChange func(*Config), onError func(error)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		reloaded := &Config{}
		if err := viper.Unmarshal(reloaded); err != nil {
			if onError != nil {
				onError(fmt.Errorf("unable to unmarshal config: %w", err))
			}
			return
		}
		if err := reloaded.Validate(); err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		cfg = reloaded
		if onChange != nil {
			onChange(reloaded)
		}
	})
	viper.WatchConfig()
}

// Save saves the current configuration to file
func Save() error {
	configPath := GetConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Update replaces the in-memory configuration and mirrors it into viper so Save persists it
func Update(c *Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	viper.Set("keys.app_name", c.Keys.AppName)
	viper.Set("keys.backend", c.Keys.Backend)
	viper.Set("keys.display", c.Keys.Display)
	viper.Set("keys.poll_interval_ms", c.Keys.PollIntervalMs)
	viper.Set("logging.file_logging", c.Logging.FileLogging)
	viper.Set("logging.log_level", c.Logging.LogLevel)
	viper.Set("ipc.enabled", c.IPC.Enabled)
	viper.Set("ipc.socket_path", c.IPC.SocketPath)
	viper.Set("ipc.queue_size", c.IPC.QueueSize)
	viper.Set("notify.enabled", c.Notify.Enabled)
	cfg = c
	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}

	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	return filepath.Join(xdg.ConfigHome, "popkeys", "popkeys.toml")
}
