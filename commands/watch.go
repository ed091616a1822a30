package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/penwyp/go-tracker-monitor/internal/application/tracking"
	"github.com/penwyp/go-tracker-monitor/internal/core/telemetry"
	"github.com/penwyp/go-tracker-monitor/internal/data/backend"
	"github.com/penwyp/go-tracker-monitor/internal/data/store"
	"github.com/penwyp/go-tracker-monitor/internal/presentation/display"
	"github.com/penwyp/go-tracker-monitor/internal/util"
	"github.com/spf13/cobra"
)

func newWatchCommand(opts *options) *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow trackers on a live map",
		Long: `Polls the tracker service and draws every visible tracker on a terminal map,
with a panel listing each tracker, its color and its latest position.

Each poll first discovers the trackers, then loads the history of every
tracker that is shown. A poll that is overtaken by a newer one is dropped.

Press h inside the view for the key bindings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}

	// Refresh flags
	watchCmd.Flags().Duration("interval", 15*time.Second,
		"Polling interval (minimum 1s)")
	watchCmd.Flags().Float64("refresh-per-second", 1,
		"Display refresh rate (0.1-20 Hz)")

	return watchCmd
}

func runWatch(cmd *cobra.Command, opts *options) error {
	_, tc, err := setup(cmd, opts, false)
	if err != nil {
		return err
	}

	client, err := backend.NewClient(tc.BackendURL, tc.RequestTimeout)
	if err != nil {
		return err
	}
	reg, st, err := openRegistry(tc)
	if err != nil {
		return err
	}
	defer st.Close()

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return err
	}

	term := display.NewTerminalDisplay()
	components := tracking.Components{
		Source:   client,
		Registry: reg,
		Metrics:  metrics,
		Display:  term,
		Surface:  term.Canvas(),
	}
	if monitor := watchStore(st); monitor != nil {
		components.Monitor = monitor
	}

	orch, err := tracking.NewOrchestrator(tc, components)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return orch.Run(ctx)
}

// watchStore follows changes other processes make to a file store. Other
// backends are not watched.
func watchStore(st store.Store) *store.Watcher {
	fs, ok := st.(*store.FileStore)
	if !ok {
		return nil
	}
	w, err := fs.Watch()
	if err != nil {
		util.LogWarn("Cannot watch state directory, external changes need a restart",
			util.F("dir", fs.Dir()), util.F("error", err.Error()))
		return nil
	}
	return w
}
