package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/popkeys/internal/config"
	"github.com/bnema/popkeys/internal/ipc"
	"github.com/bnema/popkeys/internal/ui"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the status of the popkeys daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := ipc.NewClient(config.Get().IPC.SocketPath, rootLogger)
		if err != nil {
			return fmt.Errorf("failed to create IPC client: %w", err)
		}

		status, err := client.Status()
		if errors.Is(err, ipc.ErrServerNotRunning) {
			fmt.Fprintln(cmd.OutOrStdout(), ui.FormatStatus(false, "popkeys daemon is not running"))
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get daemon status: %w", err)
		}

		var output strings.Builder
		output.WriteString(ui.HeaderStyle.Render("POPKEYS STATUS"))
		output.WriteString("\n")
		output.WriteString(ui.CreateSeparator(40, "─"))
		output.WriteString("\n")

		grabbed := "media keys not grabbed"
		if status.Grabbed {
			grabbed = "media keys grabbed"
		}
		output.WriteString(ui.FormatStatus(status.Grabbed, grabbed))
		output.WriteString("\n")
		output.WriteString(ui.FormatField("Backend", status.Backend))
		output.WriteString("\n")
		output.WriteString(ui.FormatField("Kind", status.Kind))
		output.WriteString("\n")
		output.WriteString(ui.FormatField("App name", status.AppName))
		output.WriteString("\n")
		output.WriteString(ui.FormatField("Subscribers", status.Subscribers))

		fmt.Fprintln(cmd.OutOrStdout(), output.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
