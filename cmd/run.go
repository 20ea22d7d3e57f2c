package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/popkeys/internal/config"
	"github.com/bnema/popkeys/internal/ipc"
	"github.com/bnema/popkeys/internal/mediakey"
	"github.com/bnema/popkeys/internal/notify"
	"github.com/bnema/popkeys/internal/popkeys"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Capture media keys until interrupted",
	Long: `Run the popkeys daemon. Media keys are grabbed for as long as it runs and
streamed to other processes over the IPC socket (see 'popkeys listen').`,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().String("backend", "", "backend to use: auto, gnome or generic")
	runCmd.Flags().String("app-name", "", "application name registered with the settings daemon")
	runCmd.Flags().String("display", "", "X display for the generic backend")
	runCmd.Flags().Bool("notify", false, "show a desktop notification for every key")
	runCmd.Flags().Bool("ipc", true, "serve the IPC socket")

	// Bind flags to viper
	viper.BindPFlag("keys.backend", runCmd.Flags().Lookup("backend"))
	viper.BindPFlag("keys.app_name", runCmd.Flags().Lookup("app-name"))
	viper.BindPFlag("keys.display", runCmd.Flags().Lookup("display"))
	viper.BindPFlag("notify.enabled", runCmd.Flags().Lookup("notify"))
	viper.BindPFlag("ipc.enabled", runCmd.Flags().Lookup("ipc"))

	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	l := rootLogger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := popkeys.New(cfg, l)
	if err != nil {
		return fmt.Errorf("failed to start media key service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			l.Error("Failed to close media key service", "err", err)
		}
	}()

	svc.RegisterCallback(func(key mediakey.Type) {
		l.Info("Media key", "key", key)
	})

	if cfg.Notify.Enabled {
		n := notify.New(cfg.Keys.AppName, l)
		svc.RegisterCallback(n.Callback())
	}

	if cfg.IPC.Enabled {
		server, err := ipc.NewSocketServer(svc, cfg.IPC.SocketPath, cfg.IPC.QueueSize, l)
		if err != nil {
			return fmt.Errorf("failed to create IPC server: %w", err)
		}
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start IPC server: %w", err)
		}
		defer server.Stop()
	}

	config.Watch(func(c *config.Config) {
		applyLogLevel(l, c)
		l.Info("Configuration reloaded", "path", config.GetConfigPath())
	}, func(err error) {
		l.Warn("Ignoring invalid configuration change", "err", err)
	})

	st := svc.Status()
	l.Info("popkeys running", "backend", st.Backend, "kind", st.Kind, "app", st.AppName)

	<-ctx.Done()
	l.Info("Received shutdown signal, releasing media keys")
	return nil
}
