package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/popkeys/internal/config"
	"github.com/bnema/popkeys/internal/ipc"
	"github.com/bnema/popkeys/internal/mediakey"
	"github.com/bnema/popkeys/internal/popkeys"
	"github.com/bnema/popkeys/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var listenMaxEvents int

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Show media key presses as they happen",
	Long: `Show media key presses live. When a daemon is running the events come from
its IPC socket, otherwise popkeys grabs the keys itself until you quit.`,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().IntVarP(&listenMaxEvents, "max-events", "n", ui.DefaultMaxEvents, "number of events kept on screen")
	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	// Log lines would tear the inline view apart
	if rootLogger.GetLevel() < log.ErrorLevel {
		rootLogger.SetLevel(log.ErrorLevel)
	}

	model := ui.NewMonitorModel(listenMaxEvents)
	p := tea.NewProgram(model)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := ipc.NewClient(cfg.IPC.SocketPath, rootLogger)
	if err != nil {
		return fmt.Errorf("failed to create IPC client: %w", err)
	}

	if status, err := client.Status(); err == nil {
		go p.Send(ui.SourceMsg{Source: "daemon", Backend: status.Backend, Grabbed: status.Grabbed})
		go func() {
			err := client.Subscribe(ctx, func(ev *ipc.KeyEvent) {
				p.Send(ui.KeyMsg{Key: ev.Key, At: ev.Timestamp})
			})
			if err != nil {
				p.Send(ui.ErrorMsg{Err: err})
			}
		}()
	} else {
		if !errors.Is(err, ipc.ErrServerNotRunning) {
			rootLogger.Warn("Daemon did not answer, grabbing keys directly", "err", err)
		}

		svc, err := popkeys.New(cfg, rootLogger)
		if err != nil {
			return fmt.Errorf("failed to start media key service: %w", err)
		}
		defer svc.Close()

		svc.RegisterCallback(func(key mediakey.Type) {
			p.Send(ui.KeyMsg{Key: key, At: time.Now()})
		})

		st := svc.Status()
		go p.Send(ui.SourceMsg{Source: "in-process", Backend: st.Backend, Grabbed: st.Grabbed})
	}

	if _, err := p.Run(); err != nil {
		return err
	}
	return model.Err()
}
