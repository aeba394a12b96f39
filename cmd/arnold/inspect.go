package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brockwebb/arnold-sub002/internal/recovery"
	"github.com/brockwebb/arnold-sub002/internal/regress"
)

// #region inspect

func newInspectCmd(dbPath *string) *cobra.Command {
	var sessionID, runID string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "inspect --session <id> [--run <id>]",
		Short: "Print a session's active intervals as a table",
		RunE: func(c *cobra.Command, _ []string) error {
			if sessionID == "" {
				return fmt.Errorf("--session is required")
			}
			st, err := openStore(*dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := context.Background()
			var run recovery.AlgorithmRun
			var intervals []recovery.Interval
			if runID != "" {
				// A historical run, kept for provenance.
				if run, err = st.GetRun(ctx, runID); err != nil {
					return err
				}
				if run.SessionID != sessionID {
					return fmt.Errorf("run %s belongs to session %s", shortID(runID), run.SessionID)
				}
				if intervals, err = st.GetRunIntervals(ctx, runID); err != nil {
					return err
				}
			} else {
				if run, err = st.GetActiveRun(ctx, sessionID); err != nil {
					return err
				}
				if intervals, err = st.GetActiveIntervals(ctx, sessionID); err != nil {
					return err
				}
			}

			if jsonOut {
				return printJSON(c, struct {
					Run       recovery.AlgorithmRun `json:"run"`
					Intervals []recovery.Interval   `json:"intervals"`
				}{run, intervals})
			}

			out := c.OutOrStdout()
			_, _ = fmt.Fprintf(out, "session %s  run %s (%s)  pass=%d flagged=%d rejected=%d\n\n",
				sessionID, shortID(run.ID), run.VersionTag,
				run.Counts.Pass, run.Counts.Flagged, run.Counts.Rejected)

			_, _ = fmt.Fprintf(out, "%-5s  %-8s  %5s  %5s  %6s  %6s  %6s  %-8s  %s\n",
				"Order", "Start", "Dur", "Peak", "HRR60", "R2_60", "Tau", "Status", "Reason/Flags")
			_, _ = fmt.Fprintf(out, "%s\n", strings.Repeat("-", 78))
			for _, iv := range intervals {
				_, _ = fmt.Fprintf(out, "%-5d  %-8s  %4ds  %5.0f  %6s  %6s  %5.0fs  %-8s  %s\n",
					iv.IntervalOrder,
					iv.StartTime.Format("15:04:05"),
					iv.DurationS,
					iv.PeakHR,
					mapCell(iv.HRRAbs, 60, "%.0f"),
					mapCellS(iv.R2, recovery.WindowPrimary, "%.2f"),
					iv.Tau,
					iv.QualityStatus,
					reasonOrFlags(iv))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	cmd.Flags().StringVar(&runID, "run", "", "inspect a specific run instead of the active one")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")
	return cmd
}

func reasonOrFlags(iv recovery.Interval) string {
	if iv.AutoRejectReason != "" {
		return iv.AutoRejectReason
	}
	return strings.Join(iv.QualityFlags, ",")
}

func mapCell(m map[int]float64, key int, format string) string {
	v, ok := m[key]
	if !ok {
		return "—"
	}
	return fmt.Sprintf(format, v)
}

func mapCellS(m map[string]float64, key string, format string) string {
	v, ok := m[key]
	if !ok {
		return "—"
	}
	return fmt.Sprintf(format, v)
}

func printJSON(c *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	_, _ = fmt.Fprintln(c.OutOrStdout(), string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion inspect

// #region baseline

func newBaselineCmd(dbPath *string) *cobra.Command {
	baseline := &cobra.Command{Use: "baseline", Short: "Regression baseline export and check"}

	var exportSession, exportOut string
	export := &cobra.Command{
		Use:   "export --session <id> --out <file.json>",
		Short: "Freeze a session's active run as a baseline fixture",
		RunE: func(c *cobra.Command, _ []string) error {
			if exportSession == "" || exportOut == "" {
				return fmt.Errorf("--session and --out are required")
			}
			st, err := openStore(*dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := context.Background()
			run, err := st.GetActiveRun(ctx, exportSession)
			if err != nil {
				return err
			}
			intervals, err := st.GetActiveIntervals(ctx, exportSession)
			if err != nil {
				return err
			}

			b := regress.Snapshot(run, intervals)
			if err := regress.Save(b, exportOut); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.OutOrStdout(), "baseline written: %s (%d intervals)\n", exportOut, len(b.Intervals))
			return nil
		},
	}
	export.Flags().StringVar(&exportSession, "session", "", "session id")
	export.Flags().StringVar(&exportOut, "out", "", "output fixture path")

	var checkSession, checkBaseline string
	check := &cobra.Command{
		Use:   "check --session <id> --baseline <file.json>",
		Short: "Compare the active run against a frozen baseline",
		RunE: func(c *cobra.Command, _ []string) error {
			if checkSession == "" || checkBaseline == "" {
				return fmt.Errorf("--session and --baseline are required")
			}
			st, err := openStore(*dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := context.Background()
			base, err := regress.Load(checkBaseline)
			if err != nil {
				return err
			}
			intervals, err := st.GetActiveIntervals(ctx, checkSession)
			if err != nil {
				return err
			}
			judgments, err := st.ListJudgments(ctx, checkSession)
			if err != nil {
				return err
			}

			report := regress.Compare(base, intervals)
			regress.CheckJudgments(&report, judgments, intervals)
			_, _ = fmt.Fprint(c.OutOrStdout(), report.Render())

			if !report.Clean() {
				return fmt.Errorf("baseline divergence: %d field diffs, %d judgment regressions",
					report.Divergences, len(report.JudgmentRegressions))
			}
			return nil
		},
	}
	check.Flags().StringVar(&checkSession, "session", "", "session id")
	check.Flags().StringVar(&checkBaseline, "baseline", "", "baseline fixture path")

	baseline.AddCommand(export, check)
	return baseline
}

// #endregion baseline
