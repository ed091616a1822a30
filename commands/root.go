package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/penwyp/go-tracker-monitor/internal/application/tracking"
	"github.com/penwyp/go-tracker-monitor/internal/config"
	"github.com/penwyp/go-tracker-monitor/internal/core/registry"
	"github.com/penwyp/go-tracker-monitor/internal/core/telemetry"
	"github.com/penwyp/go-tracker-monitor/internal/data/backend"
	"github.com/penwyp/go-tracker-monitor/internal/data/store"
	"github.com/penwyp/go-tracker-monitor/internal/presentation/display"
	"github.com/penwyp/go-tracker-monitor/internal/presentation/formatter"
	"github.com/penwyp/go-tracker-monitor/internal/util"
	"github.com/spf13/cobra"
)

// options holds the flags shared by every command
type options struct {
	// Logging related
	debug bool

	// Config file, defaults to ~/.go-tracker-monitor/config.yaml
	configFile string

	// Output related
	outputFormat string
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "go-tracker-monitor [flags]",
		Short: "GPS tracker monitoring tool",
		Long: `go-tracker-monitor follows GPS trackers reported by a tracker service.

Without a subcommand it runs one fetch cycle and prints every known tracker
with its latest position. Use "watch" for the live map view.

Examples:
  go-tracker-monitor                                      # List trackers from the default service
  go-tracker-monitor --backend http://gps.local:5000      # Use another service
  go-tracker-monitor --output json                        # Output in JSON format
  go-tracker-monitor watch --interval 30s                 # Live map, polling every 30 seconds
  go-tracker-monitor rename T1 "Delivery van"             # Give a tracker a display name`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts)
		},
	}

	// Config file and debugging
	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "",
		"Config file (default ~/.go-tracker-monitor/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false,
		"Enable debug mode")

	// Tracker service
	rootCmd.PersistentFlags().String("backend", "http://localhost:5000",
		"Tracker service base URL")
	rootCmd.PersistentFlags().Duration("timeout", 10*time.Second,
		"Per-request timeout")
	rootCmd.PersistentFlags().Int("concurrency", 4,
		"Maximum concurrent history requests")

	// Persisted state
	rootCmd.PersistentFlags().String("state-dir", config.DefaultStateDir,
		"Directory holding names, colors and hidden trackers")
	rootCmd.PersistentFlags().String("store", store.BackendFile,
		"State backend (file, sqlite, memory)")
	rootCmd.PersistentFlags().String("rename-policy", string(registry.RenameKeepColor),
		"Color on rename (keep, regenerate)")

	// Logging
	rootCmd.PersistentFlags().String("log-level", "info",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", config.DefaultLogFile,
		"Log file path, empty disables file logging")
	rootCmd.PersistentFlags().String("gelf", "",
		"Graylog GELF UDP address (host:port)")

	// Display
	rootCmd.PersistentFlags().String("timezone", "Local",
		"Timezone setting (e.g., Europe/Berlin, UTC)")

	// Output configuration
	rootCmd.Flags().StringVarP(&opts.outputFormat, "output", "o", formatter.FormatTable,
		"Output format (table, json, csv, summary)")

	rootCmd.AddCommand(newWatchCommand(opts))
	rootCmd.AddCommand(newRenameCommand(opts))
	rootCmd.AddCommand(newHideCommand(opts))
	rootCmd.AddCommand(newRestoreCommand(opts))
	rootCmd.AddCommand(newAddCommand(opts))
	rootCmd.AddCommand(newConfigCommand(opts))
	return rootCmd
}

// Execute runs the command line
func Execute() error {
	return NewRootCommand().Execute()
}

// setup loads the configuration and initializes logging and the timezone.
// console mirrors log entries to stderr in debug mode; the watch view owns
// the terminal and passes false.
func setup(cmd *cobra.Command, opts *options, console bool) (*config.Config, *tracking.TrackingConfig, error) {
	cfg, err := config.Load(opts.configFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	if opts.debug {
		cfg.Log.Level = "debug"
	}

	logOpts := cfg.LoggerOptions()
	if logOpts.File != "" {
		if err := util.EnsureDir(filepath.Dir(logOpts.File)); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	if opts.debug && console {
		logOpts.Console = cmd.ErrOrStderr()
	}
	util.InitLogger(logOpts)

	if err := util.InitializeTimeProvider(cfg.Timezone); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize timezone: %w", err)
	}

	tc, err := cfg.Tracking()
	if err != nil {
		return nil, nil, err
	}
	util.LogDebug("Configuration loaded", util.F("file", cfg.File), util.F("backend", tc.BackendURL))
	return cfg, tc, nil
}

// openRegistry opens the persisted state and the registry on top of it.
// The returned store must be closed by the caller.
func openRegistry(tc *tracking.TrackingConfig) (*registry.Registry, store.Store, error) {
	dir := tc.StateDir
	if tc.StoreBackend != store.BackendMemory {
		if err := util.EnsureDir(dir); err != nil {
			return nil, nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	st, err := store.Open(tc.StoreBackend, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state store: %w", err)
	}
	reg := registry.New(store.NewState(st), registry.Options{RenamePolicy: tc.RenamePolicy})
	return reg, st, nil
}

func runList(cmd *cobra.Command, opts *options) error {
	_, tc, err := setup(cmd, opts, true)
	if err != nil {
		return err
	}

	f, err := formatter.New(opts.outputFormat)
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

	orch, err := tracking.NewOrchestrator(tc, tracking.Components{
		Source:   client,
		Registry: reg,
		Metrics:  metrics,
		Surface:  display.NewCanvas(),
	})
	if err != nil {
		return err
	}
	defer orch.Close()

	result, err := orch.RunOnce(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetch from %s failed: %w", tc.BackendURL, err)
	}

	return f.Format(cmd.OutOrStdout(), buildReport(tc.BackendURL, reg, orch.Cycle(), result))
}

// buildReport lists every known tracker, hidden ones included
func buildReport(backendURL string, reg *registry.Registry, cycle *tracking.FetchCycle, result tracking.CycleResult) formatter.Report {
	hidden := make(map[string]bool)
	for _, serial := range reg.Hidden() {
		hidden[serial] = true
	}
	failed := make(map[string]bool)
	for _, serial := range result.FailedSerials {
		failed[serial] = true
	}

	trackers := reg.Trackers()
	rows := make([]formatter.TrackerRow, 0, len(trackers))
	for _, t := range trackers {
		rows = append(rows, formatter.NewTrackerRow(t, cycle.Points(t.Serial),
			hidden[t.Serial], reg.Eligible(t.Serial), failed[t.Serial]))
	}

	return formatter.Report{
		Backend:     backendURL,
		CycleID:     result.CycleID,
		GeneratedAt: time.Now(),
		Trackers:    rows,
		Failed:      result.FailedSerials,
	}
}
