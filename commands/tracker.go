package commands

import (
	"fmt"
	"strings"

	"github.com/penwyp/go-tracker-monitor/internal/application/tracking"
	"github.com/penwyp/go-tracker-monitor/internal/core/registry"
	"github.com/penwyp/go-tracker-monitor/internal/data/backend"
	"github.com/penwyp/go-tracker-monitor/internal/data/store"
	"github.com/spf13/cobra"
)

// registrySession is the state a one-shot registry command works on
type registrySession struct {
	client   *backend.Client
	registry *registry.Registry
	store    store.Store
}

func (s *registrySession) Close() error {
	return s.store.Close()
}

// openSession loads the configuration and the persisted registry. With
// discover set, the trackers are discovered first so commands can address
// them by serial.
func openSession(cmd *cobra.Command, opts *options, discover bool) (*registrySession, error) {
	_, tc, err := setup(cmd, opts, true)
	if err != nil {
		return nil, err
	}
	client, err := backend.NewClient(tc.BackendURL, tc.RequestTimeout)
	if err != nil {
		return nil, err
	}
	reg, st, err := openRegistry(tc)
	if err != nil {
		return nil, err
	}
	s := &registrySession{client: client, registry: reg, store: st}

	if discover {
		cycle := tracking.NewFetchCycle(client, reg, nil, nil, 1, tc.RequestTimeout)
		if _, err := cycle.Discover(cmd.Context()); err != nil {
			s.Close()
			return nil, fmt.Errorf("discovery at %s failed: %w", tc.BackendURL, err)
		}
	}
	return s, nil
}

func newRenameCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <serial> <name>",
		Short: "Set the display name of a tracker",
		Long: `Sets the display name of a tracker. The name is stored locally and shown
in listings and the watch view. Whether the tracker also gets a new color
follows the rename policy (--rename-policy keep|regenerate).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, true)
			if err != nil {
				return err
			}
			defer s.Close()

			t, err := s.registry.Rename(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q (color %s)\n", t.Serial, t.Name, t.Color)
			return nil
		},
	}
}

func newHideCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "hide <serial>...",
		Short: "Hide trackers from listings and the map",
		Long: `Hides trackers until "restore" is run. A running watch view using the
file store picks the change up without a restart.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, true)
			if err != nil {
				return err
			}
			defer s.Close()

			// every serial must be known before any is hidden
			for _, serial := range args {
				if _, ok := s.registry.Tracker(serial); !ok {
					return fmt.Errorf("hide %s: %w", serial, registry.ErrUnknownTracker)
				}
			}
			for _, serial := range args {
				if err := s.registry.Hide(serial); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Hidden: %s\n", strings.Join(args, ", "))
			return nil
		},
	}
}

func newRestoreCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Show all hidden trackers again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, false)
			if err != nil {
				return err
			}
			defer s.Close()

			count := len(store.NewState(s.store).HiddenSerials())
			if err := s.registry.RestoreAll(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d hidden tracker(s)\n", count)
			return nil
		},
	}
}

func newAddCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "add <serial>",
		Short: "Register a new tracker with the service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, false)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.client.Register(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", args[0])
			return nil
		},
	}
}
