package cmd

import (
	"fmt"
	"time"

	"github.com/bnema/popkeys/internal/inject"
	"github.com/bnema/popkeys/internal/mediakey"
	"github.com/bnema/popkeys/internal/ui"
	"github.com/spf13/cobra"
)

var (
	injectDevice   string
	injectSettle   time.Duration
	injectInterval time.Duration
)

var injectCmd = &cobra.Command{
	Use:   "inject <key>...",
	Short: "Press media keys on a virtual keyboard",
	Long: `Create a uinput virtual keyboard and press the given media keys on it, for
checking a running capture end to end. Keys: play, pause, stop, previous,
next, volume-down, volume-up.

Access to /dev/uinput usually requires root or membership of the input group.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := make([]mediakey.Type, 0, len(args))
		for _, arg := range args {
			key, err := mediakey.Parse(arg)
			if err != nil {
				return err
			}
			keys = append(keys, key)
		}

		inj, err := inject.New(injectDevice, rootLogger)
		if err != nil {
			return err
		}
		defer inj.Close()

		// The display server needs a moment to pick up a new input device
		time.Sleep(injectSettle)

		for i, key := range keys {
			if i > 0 {
				time.Sleep(injectInterval)
			}
			if err := inj.Press(key); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.FormatSuccess(fmt.Sprintf("%s %s", ui.KeyIcon(key), key)))
		}
		return nil
	},
}

func init() {
	injectCmd.Flags().StringVar(&injectDevice, "device", inject.DefaultDevice, "uinput device node")
	injectCmd.Flags().DurationVar(&injectSettle, "settle", 500*time.Millisecond, "wait after creating the virtual keyboard")
	injectCmd.Flags().DurationVar(&injectInterval, "interval", 100*time.Millisecond, "pause between keys")
	rootCmd.AddCommand(injectCmd)
}
