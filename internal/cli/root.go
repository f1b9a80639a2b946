// Package cli implements the fittracker command line client.
package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"example.com/fittracker/internal/auth"
	"example.com/fittracker/internal/config"
	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/localstore"
	"example.com/fittracker/internal/localstore/badgerkv"
	"example.com/fittracker/internal/localstore/sqlitekv"
	"example.com/fittracker/internal/remote"
	"example.com/fittracker/internal/tracker"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Format     string // "json" | "text"
	Store      string
	DataDir    string
	Verbose    bool

	// KV replaces the configured store when set.
	KV localstore.KV
	// Now replaces the wall clock when set.
	Now func() time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the fittracker CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fittracker",
		Short: "Offline-first nutrition, body-weight and workout tracker",
		Long: `fittracker records food, body weight, goals and workouts on this device
first and synchronises them with the records API in the background.

Every change is saved locally before the command returns. If the API is
unreachable an added record stays on this device under its local id and is
not uploaded later; deletes are remembered and retried by "fittracker sync".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "", "local store backend (badger|sqlite|memory)")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "directory for the local store")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log sync diagnostics to stderr")

	cmd.AddCommand(NewFoodsCommand(opts))
	cmd.AddCommand(NewWeightCommand(opts))
	cmd.AddCommand(NewGoalsCommand(opts))
	cmd.AddCommand(NewWorkoutsCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// session is one opened tracker plus what must be released with it.
type session struct {
	*tracker.Tracker
	out   *printer
	close func() error
}

// Close waits for in-flight reconciliation and releases the local store.
func (s *session) Close() error {
	s.Wait()
	return s.close()
}

func (opts *RootOptions) loadConfig() (config.Config, error) {
	cfg := config.Load()
	if opts.ConfigFile != "" {
		var err error
		if cfg, err = config.LoadFile(opts.ConfigFile); err != nil {
			return config.Config{}, err
		}
	}
	if opts.Store != "" {
		cfg.Client.Store = opts.Store
	}
	if opts.DataDir != "" {
		cfg.Client.DataDir = opts.DataDir
	}
	if opts.KV != nil {
		cfg.Client.Store = config.StoreMemory
	}
	return cfg, cfg.ValidateClient()
}

func (opts *RootOptions) logger(cmd *cobra.Command) *log.Logger {
	if !opts.Verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
}

// open builds the tracker described by the configuration and flags.
func (opts *RootOptions) open(cmd *cobra.Command) (*session, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := opts.logger(cmd)

	kv, closeKV, err := opts.openKV(cfg.Client, logger)
	if err != nil {
		return nil, err
	}

	owner := "local"
	if cfg.Client.Token != "" {
		if owner, err = auth.Subject(cfg.Client.Token); err != nil {
			_ = closeKV()
			return nil, fmt.Errorf("token: %w", err)
		}
	}

	trackerOpts := []tracker.Option{tracker.WithLogger(logger)}
	if opts.Now != nil {
		trackerOpts = append(trackerOpts, tracker.WithClock(opts.Now))
	}
	t := tracker.New(kv, remotes(cfg.Client), auth.StaticToken(cfg.Client.Token), owner, trackerOpts...)

	return &session{
		Tracker: t,
		out:     &printer{format: opts.Format, w: cmd.OutOrStdout()},
		close:   closeKV,
	}, nil
}

func (opts *RootOptions) openKV(cfg config.Client, logger *log.Logger) (localstore.KV, func() error, error) {
	noop := func() error { return nil }
	if opts.KV != nil {
		return opts.KV, noop, nil
	}

	switch cfg.Store {
	case config.StoreMemory:
		return localstore.NewMemoryKV(), noop, nil
	case config.StoreSQLite:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, nil, err
		}
		kv, err := sqlitekv.Open(filepath.Join(cfg.DataDir, "fittracker.db"))
		if err != nil {
			return nil, nil, err
		}
		return kv, kv.Close, nil
	default:
		bcfg := badgerkv.DefaultConfig(filepath.Join(cfg.DataDir, "badger"))
		bcfg.Logger = logger
		kv, err := badgerkv.Open(bcfg)
		if err != nil {
			return nil, nil, err
		}
		return kv, kv.Close, nil
	}
}

func remotes(cfg config.Client) tracker.Remotes {
	if cfg.RemoteURL == "" {
		return tracker.Remotes{
			Foods:    remote.Offline[domain.FoodEntry]{},
			Progress: remote.Offline[domain.WeightEntry]{},
			Goals:    remote.Offline[domain.Goals]{},
			Workouts: remote.Offline[domain.WorkoutLog]{},
		}
	}
	return tracker.Remotes{
		Foods:    remote.NewHTTPCollection[domain.FoodEntry](cfg.RemoteURL, tracker.CollectionFoods, cfg.RemoteTimeout),
		Progress: remote.NewHTTPCollection[domain.WeightEntry](cfg.RemoteURL, tracker.CollectionProgress, cfg.RemoteTimeout),
		Goals:    remote.NewHTTPCollection[domain.Goals](cfg.RemoteURL, tracker.CollectionGoals, cfg.RemoteTimeout),
		Workouts: remote.NewHTTPCollection[domain.WorkoutLog](cfg.RemoteURL, tracker.CollectionWorkouts, cfg.RemoteTimeout),
	}
}

// withSession opens a session for the duration of fn.
func withSession(opts *RootOptions, cmd *cobra.Command, fn func(*session) error) (err error) {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

func (opts *RootOptions) today() string {
	now := time.Now()
	if opts.Now != nil {
		now = opts.Now()
	}
	return now.Format(domain.DayLayout)
}
