package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/brockwebb/arnold-sub002/internal/recovery"
	"github.com/brockwebb/arnold-sub002/internal/review"
	"github.com/brockwebb/arnold-sub002/internal/store"
)

// #region review-port

// reviewPort adapts the store to the review screen for one session.
type reviewPort struct {
	store     *store.Store
	sessionID string
}

func (p reviewPort) Intervals(ctx context.Context) ([]recovery.Interval, error) {
	return p.store.GetActiveIntervals(ctx, p.sessionID)
}

func (p reviewPort) Samples(ctx context.Context) ([]recovery.Sample, error) {
	return p.store.GetSamples(ctx, p.sessionID)
}

func (p reviewPort) SaveAdjustment(ctx context.Context, adj recovery.PeakAdjustment) error {
	return p.store.AddAdjustment(ctx, adj)
}

func (p reviewPort) SaveOverride(ctx context.Context, ov recovery.QualityOverride) error {
	return p.store.AddOverride(ctx, ov)
}

func (p reviewPort) SaveJudgment(ctx context.Context, j recovery.HumanJudgment) error {
	return p.store.AddJudgment(ctx, j)
}

// #endregion review-port

// #region review-cmd

func newReviewCmd(dbPath *string) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "review --session <id>",
		Short: "Review a session's intervals in a terminal UI",
		RunE: func(_ *cobra.Command, _ []string) error {
			if sessionID == "" {
				return fmt.Errorf("--session is required")
			}
			st, err := openStore(*dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			model := review.New(reviewPort{store: st, sessionID: sessionID}, sessionID)
			_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	return cmd
}

// #endregion review-cmd

// #region scriptable-writes

func newAdjustCmd(dbPath *string) *cobra.Command {
	var sessionID, reason string
	var order, shift int

	cmd := &cobra.Command{
		Use:   "adjust --session <id> --order N --shift S",
		Short: "Record a peak adjustment (applied on next reprocess)",
		RunE: func(c *cobra.Command, _ []string) error {
			if sessionID == "" {
				return fmt.Errorf("--session is required")
			}
			if shift == 0 {
				return fmt.Errorf("--shift must be non-zero")
			}
			st, err := openStore(*dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			err = st.AddAdjustment(context.Background(), recovery.PeakAdjustment{
				SessionID:     sessionID,
				IntervalOrder: order,
				ShiftSeconds:  shift,
				Reason:        reason,
				CreatedAt:     time.Now().UTC(),
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.OutOrStdout(), "adjustment recorded: session=%s order=%d shift=%+ds\n",
				sessionID, order, shift)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	cmd.Flags().IntVar(&order, "order", 0, "interval order within the session")
	cmd.Flags().IntVar(&shift, "shift", 0, "seconds to move the peak (+later, -earlier)")
	cmd.Flags().StringVar(&reason, "reason", "", "why the peak is wrong")
	return cmd
}

func newOverrideCmd(dbPath *string) *cobra.Command {
	var sessionID, status, reason, notes string
	var order int

	cmd := &cobra.Command{
		Use:   "override --session <id> --order N --status <pass|flagged|rejected>",
		Short: "Force an interval's final quality status",
		RunE: func(c *cobra.Command, _ []string) error {
			if sessionID == "" {
				return fmt.Errorf("--session is required")
			}
			forced := recovery.Status(status)
			switch forced {
			case recovery.StatusPass, recovery.StatusFlagged, recovery.StatusRejected:
			default:
				return fmt.Errorf("bad --status %q (pass|flagged|rejected)", status)
			}
			st, err := openStore(*dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			err = st.AddOverride(context.Background(), recovery.QualityOverride{
				SessionID:     sessionID,
				IntervalOrder: order,
				ForcedStatus:  forced,
				Reason:        reason,
				Notes:         notes,
				CreatedAt:     time.Now().UTC(),
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.OutOrStdout(), "override recorded: session=%s order=%d status=%s\n",
				sessionID, order, forced)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	cmd.Flags().IntVar(&order, "order", 0, "interval order within the session")
	cmd.Flags().StringVar(&status, "status", "", "forced status")
	cmd.Flags().StringVar(&reason, "reason", "", "why the automated result is wrong")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	return cmd
}

func newJudgeCmd(dbPath *string) *cobra.Command {
	var sessionID, judgment, notes string
	var order int

	cmd := &cobra.Command{
		Use:   "judge --session <id> --order N --judgment <verdict>",
		Short: "Record an analyst verdict on an interval",
		RunE: func(c *cobra.Command, _ []string) error {
			if sessionID == "" {
				return fmt.Errorf("--session is required")
			}
			switch judgment {
			case recovery.JudgmentConfirmed, recovery.JudgmentFalsePositive,
				recovery.JudgmentFalseNegative, recovery.JudgmentOverride:
			default:
				return fmt.Errorf("bad --judgment %q (confirmed|false_positive|false_negative|override)", judgment)
			}
			st, err := openStore(*dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := context.Background()
			intervals, err := st.GetActiveIntervals(ctx, sessionID)
			if err != nil {
				return err
			}
			var nominal time.Time
			found := false
			for _, iv := range intervals {
				if iv.IntervalOrder == order {
					nominal = iv.StartTime
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("session %s has no interval with order %d", sessionID, order)
			}

			err = st.AddJudgment(ctx, recovery.HumanJudgment{
				SessionID:     sessionID,
				IntervalOrder: order,
				NominalStart:  nominal,
				Judgment:      judgment,
				Notes:         notes,
				CreatedAt:     time.Now().UTC(),
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.OutOrStdout(), "judgment recorded: session=%s order=%d judgment=%s\n",
				sessionID, order, judgment)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	cmd.Flags().IntVar(&order, "order", 0, "interval order within the session")
	cmd.Flags().StringVar(&judgment, "judgment", "", "verdict")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	return cmd
}

// #endregion scriptable-writes
