package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/brockwebb/arnold-sub002/internal/config"
	"github.com/brockwebb/arnold-sub002/internal/pipeline"
	"github.com/brockwebb/arnold-sub002/internal/recovery"
	"github.com/brockwebb/arnold-sub002/internal/store"
)

// #region main

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dbPath, configPath string

	root := &cobra.Command{
		Use:           "arnold",
		Short:         "Heart-rate recovery interval extraction",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "arnold.db", "SQLite database path")
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config path (defaults when empty)")

	root.AddCommand(newRunCmd(&dbPath, &configPath))
	root.AddCommand(newImportCmd(&dbPath))
	root.AddCommand(newReviewCmd(&dbPath))
	root.AddCommand(newAdjustCmd(&dbPath))
	root.AddCommand(newOverrideCmd(&dbPath))
	root.AddCommand(newJudgeCmd(&dbPath))
	root.AddCommand(newInspectCmd(&dbPath))
	root.AddCommand(newBaselineCmd(&dbPath))
	return root
}

func openStore(dbPath string) (*store.Store, error) {
	return store.NewStore(dbPath)
}

func loadConfig(configPath string) (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

// #endregion main

// #region run

func newRunCmd(dbPath, configPath *string) *cobra.Command {
	var sessionID string
	var all, reprocess, dryRun, quiet bool
	var workers int

	run := &cobra.Command{
		Use:   "run",
		Short: "Extract recovery intervals for one session or all sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if all == (sessionID != "") {
				return fmt.Errorf("exactly one of --session or --all is required")
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			st, err := openStore(*dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := context.Background()
			runner := pipeline.NewRunner(st, st, cfg)
			runner.DryRun = dryRun
			runner.Quiet = quiet

			ids := []string{sessionID}
			if all {
				ids, err = st.ListSessionIDs(ctx)
				if err != nil {
					return err
				}
			}
			if !reprocess {
				ids, err = filterUnprocessed(ctx, st, ids)
				if err != nil {
					return err
				}
			}
			if len(ids) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "nothing to process (use --reprocess to redo)")
				return nil
			}

			if workers <= 0 {
				workers = cfg.Workers
			}
			summary := runner.RunBatch(ctx, ids, workers)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(),
				"%d sessions processed, %d failed: %d pass, %d flagged, %d rejected\n",
				summary.Sessions, summary.Failed,
				summary.Counts.Pass, summary.Counts.Flagged, summary.Counts.Rejected)
			return nil
		},
	}
	run.Flags().StringVar(&sessionID, "session", "", "session id")
	run.Flags().BoolVar(&all, "all", false, "process every stored session")
	run.Flags().BoolVar(&reprocess, "reprocess", false, "rerun sessions that already have results")
	run.Flags().BoolVar(&dryRun, "dry-run", false, "extract without persisting")
	run.Flags().BoolVar(&quiet, "quiet", false, "suppress per-interval log lines")
	run.Flags().IntVar(&workers, "workers", 0, "worker pool size (config default when 0)")
	return run
}

func filterUnprocessed(ctx context.Context, st *store.Store, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		done, err := st.HasActiveRun(ctx, id)
		if err != nil {
			return nil, err
		}
		if !done {
			out = append(out, id)
		}
	}
	return out, nil
}

// #endregion run

// #region import

// sessionFile is the JSON layout for imported session telemetry.
type sessionFile struct {
	SessionID string  `json:"session_id"`
	SportType string  `json:"sport_type"`
	StartTime string  `json:"start_time"`
	RestingHR float64 `json:"resting_hr"`
	Samples   []struct {
		T  string  `json:"t"`
		HR float64 `json:"hr"`
	} `json:"samples"`
}

func newImportCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json> [file.json...]",
		Short: "Import session telemetry JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(*dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := context.Background()
			for _, path := range args {
				session, samples, err := readSessionFile(path)
				if err != nil {
					return err
				}
				if err := st.ImportSession(ctx, session, samples); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%d samples)\n", session.ID, len(samples))
			}
			return nil
		},
	}
}

func readSessionFile(path string) (recovery.Session, []recovery.Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return recovery.Session{}, nil, fmt.Errorf("read %s: %w", path, err)
	}
	var f sessionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return recovery.Session{}, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.SessionID == "" {
		return recovery.Session{}, nil, fmt.Errorf("%s: missing session_id", path)
	}

	start, err := time.Parse(time.RFC3339, f.StartTime)
	if err != nil {
		return recovery.Session{}, nil, fmt.Errorf("%s: bad start_time: %w", path, err)
	}
	session := recovery.Session{
		ID:        f.SessionID,
		SportType: f.SportType,
		StartTime: start,
		RestingHR: f.RestingHR,
	}

	samples := make([]recovery.Sample, 0, len(f.Samples))
	for i, sm := range f.Samples {
		ts, err := time.Parse(time.RFC3339, sm.T)
		if err != nil {
			return recovery.Session{}, nil, fmt.Errorf("%s: sample %d: bad timestamp: %w", path, i, err)
		}
		samples = append(samples, recovery.Sample{SessionID: f.SessionID, Timestamp: ts, HR: sm.HR})
	}
	return session, samples, nil
}

// #endregion import
