package cmd

import (
	"fmt"
	"os"

	"github.com/bnema/popkeys/internal/config"
	"github.com/bnema/popkeys/internal/logger"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
	verbose    bool

	// rootLogger is built once flags and config are known, then handed to every component
	rootLogger  = logger.Discard()
	closeLogger = func() error { return nil }

	rootCmd = &cobra.Command{
		Use:   "popkeys",
		Short: "popkeys - global media keys for Linux desktops",
		Long: `popkeys captures the media keys (play, pause, stop, previous, next and volume)
no matter which window has focus, and hands them to every subscriber.

On GNOME-like desktops the keys are requested from the GNOME settings daemon
over the session bus. Everywhere else they are grabbed on the X root window.`,
		SilenceUsage:       true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default $XDG_CONFIG_HOME/popkeys/popkeys.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "shorthand for --log-level debug")
}

// setup loads the config and builds the root logger
func setup(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		config.SetConfigPath(configFile)
	}
	if err := config.Init(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.Get()

	l, closer, err := logger.New(logger.Options{
		Level:       effectiveLogLevel(cfg),
		FileLogging: cfg.Logging.FileLogging,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	rootLogger = l
	closeLogger = closer

	rootLogger.Debug("Configuration loaded", "path", config.GetConfigPath())
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	return closeLogger()
}

// effectiveLogLevel applies flags over LOG_LEVEL over logging.log_level
func effectiveLogLevel(cfg *config.Config) string {
	if verbose {
		return "debug"
	}
	if logLevel != "" {
		return logLevel
	}
	if os.Getenv("LOG_LEVEL") != "" {
		// logger.New reads it
		return ""
	}
	return cfg.Logging.LogLevel
}

// applyLogLevel follows logging.log_level after a config reload, unless a
// flag or LOG_LEVEL pinned the level at startup
func applyLogLevel(l *log.Logger, cfg *config.Config) {
	if verbose || logLevel != "" || os.Getenv("LOG_LEVEL") != "" {
		return
	}
	l.SetLevel(logger.ParseLevel(cfg.Logging.LogLevel))
}
