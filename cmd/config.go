package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/bnema/popkeys/internal/config"
	"github.com/bnema/popkeys/internal/ui"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage popkeys configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, ui.FormatField("Config file", config.GetConfigPath()))
		fmt.Fprintln(out)

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		rows := [][2]string{
			{"keys.app_name", cfg.Keys.AppName},
			{"keys.backend", cfg.Keys.Backend},
			{"keys.display", cfg.Keys.Display},
			{"keys.poll_interval_ms", strconv.Itoa(cfg.Keys.PollIntervalMs)},
			{"logging.log_level", cfg.Logging.LogLevel},
			{"logging.file_logging", strconv.FormatBool(cfg.Logging.FileLogging)},
			{"ipc.enabled", strconv.FormatBool(cfg.IPC.Enabled)},
			{"ipc.socket_path", cfg.IPC.SocketPath},
			{"ipc.queue_size", strconv.Itoa(cfg.IPC.QueueSize)},
			{"notify.enabled", strconv.FormatBool(cfg.Notify.Enabled)},
		}
		for _, row := range rows {
			if _, err := fmt.Fprintf(w, "  %s\t%s\n", row[0], row[1]); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
		}
		return w.Flush()
	},
}

var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save current configuration to file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Save(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.FormatSuccess("Configuration saved to: "+config.GetConfigPath()))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetConfigPath()
		if _, err := os.Stat(path); err == nil {
			overwrite := false
			confirm := huh.NewConfirm().
				Title(fmt.Sprintf("%s already exists. Overwrite it?", path)).
				Value(&overwrite)
			if err := confirm.Run(); err != nil {
				return fmt.Errorf("config init cancelled: %w", err)
			}
			if !overwrite {
				return nil
			}
		}

		c := *config.Get()
		if err := runConfigForm(&c); err != nil {
			return err
		}

		if err := config.Update(&c); err != nil {
			return err
		}
		if err := config.Save(); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), ui.FormatSuccess("Configuration saved to: "+path))
		return nil
	},
}

// runConfigForm asks for the settings most people change
func runConfigForm(c *config.Config) error {
	pollInterval := strconv.Itoa(c.Keys.PollIntervalMs)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Backend").
				Description("How media keys are captured").
				Options(
					huh.NewOption("Detect from XDG_CURRENT_DESKTOP", config.BackendAuto),
					huh.NewOption("GNOME settings daemon", config.BackendGnome),
					huh.NewOption("X11 key grabs", config.BackendGeneric),
				).
				Value(&c.Keys.Backend),
			huh.NewInput().
				Title("Application name").
				Description("Name registered with the GNOME settings daemon").
				Value(&c.Keys.AppName).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("application name must not be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("X11 poll interval (ms)").
				Value(&pollInterval).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n <= 0 {
						return fmt.Errorf("must be a positive number")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Serve the IPC socket?").
				Value(&c.IPC.Enabled),
			huh.NewConfirm().
				Title("Show desktop notifications for key presses?").
				Value(&c.Notify.Enabled),
			huh.NewSelect[string]().
				Title("Log level").
				Options(
					huh.NewOption("From LOG_LEVEL (info when unset)", ""),
					huh.NewOption("debug", "debug"),
					huh.NewOption("info", "info"),
					huh.NewOption("warn", "warn"),
					huh.NewOption("error", "error"),
				).
				Value(&c.Logging.LogLevel),
			huh.NewConfirm().
				Title("Also log to a file?").
				Value(&c.Logging.FileLogging),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("config init cancelled: %w", err)
	}

	n, err := strconv.Atoi(pollInterval)
	if err != nil {
		return fmt.Errorf("invalid poll interval %q: %w", pollInterval, err)
	}
	c.Keys.PollIntervalMs = n
	return nil
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSaveCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
