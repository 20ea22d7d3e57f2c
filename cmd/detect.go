package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/bnema/popkeys/internal/bridge"
	"github.com/bnema/popkeys/internal/config"
	"github.com/bnema/popkeys/internal/input"
	"github.com/bnema/popkeys/internal/ui"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Show which backend popkeys would use",
	Long:  `Show the desktop environment popkeys sees and the backend it selects, without grabbing any key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		indicator := os.Getenv(bridge.DesktopEnv)
		kind := bridge.ResolveKind(cfg.Keys.Backend, indicator, rootLogger)

		var output strings.Builder
		output.WriteString(ui.FormatField(bridge.DesktopEnv, valueOr(indicator, "(unset)")))
		output.WriteString("\n")
		output.WriteString(ui.FormatField("keys.backend", cfg.Keys.Backend))
		output.WriteString("\n")
		output.WriteString(ui.FormatField("Selected", kind))
		output.WriteString("\n")

		switch kind {
		case bridge.KindGnomeLike:
			output.WriteString(ui.FormatField("Service", input.GnomeMediaKeysService))
			output.WriteString("\n")
			output.WriteString(ui.FormatField("App name", cfg.Keys.AppName))
		default:
			output.WriteString(ui.FormatField("Display", valueOr(cfg.Keys.Display, valueOr(os.Getenv("DISPLAY"), "(unset)"))))
			output.WriteString("\n")
			names := make([]string, len(input.MediaKeySyms))
			for i, mk := range input.MediaKeySyms {
				names[i] = mk.Name
			}
			output.WriteString(ui.FormatField("Keysyms", strings.Join(names, ", ")))
		}

		fmt.Fprintln(cmd.OutOrStdout(), output.String())
		return nil
	},
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
