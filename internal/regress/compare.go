package regress

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/brockwebb/arnold-sub002/internal/recovery"
)

// #region tolerances

// Metric tolerances. Statuses and reasons compare exactly; metrics get a
// small band so floating-point jitter across platforms is not a divergence.
const (
	hrTolerance = 0.5  // bpm
	r2Tolerance = 0.01 //
	durTolSecs  = 2    // seconds

	// judgmentStartTolS matches a judgment's nominal start against a fresh
	// interval boundary; onsets move a little between runs.
	judgmentStartTolS = 10
)

// #endregion tolerances

// #region report

// Row is one comparison line of a regression report.
type Row struct {
	IntervalOrder int
	Field         string
	Want          string
	Got           string
	Match         bool
}

// Report is the outcome of comparing a run against a baseline.
type Report struct {
	SessionID   string
	Rows        []Row
	Divergences int

	// JudgmentRegressions lists intervals a human confirmed that no longer
	// survive the gates.
	JudgmentRegressions []string
}

// Clean reports whether the run matches the baseline with no judgment
// regressions.
func (r Report) Clean() bool {
	return r.Divergences == 0 && len(r.JudgmentRegressions) == 0
}

// Render formats the report as the comparison table printed by the CLI.
func (r Report) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-6s| %-14s| %-22s| %-22s| %s\n", "Order", "Field", "Baseline", "Current", "Match")
	fmt.Fprintf(&b, "%-6s+%-15s+%-23s+%-23s+%s\n",
		"------", "---------------", "-----------------------", "-----------------------", "------")
	for _, row := range r.Rows {
		match := "DIFF"
		if row.Match {
			match = "OK"
		}
		fmt.Fprintf(&b, "%-6d| %-14s| %-22s| %-22s| %s\n",
			row.IntervalOrder, row.Field, row.Want, row.Got, match)
	}
	fmt.Fprintf(&b, "\nSummary: %d checks, %d diverge\n", len(r.Rows), r.Divergences)
	for _, reg := range r.JudgmentRegressions {
		fmt.Fprintf(&b, "JUDGMENT REGRESSION: %s\n", reg)
	}
	return b.String()
}

// #endregion report

// #region compare

// Compare checks a fresh set of intervals against a baseline, matching by
// interval order. Extra or missing intervals are divergences in their own
// right.
func Compare(base Baseline, intervals []recovery.Interval) Report {
	rep := Report{SessionID: base.SessionID}

	current := make(map[int]recovery.Interval, len(intervals))
	for _, iv := range intervals {
		current[iv.IntervalOrder] = iv
	}

	for _, want := range base.Intervals {
		got, ok := current[want.IntervalOrder]
		if !ok {
			rep.add(want.IntervalOrder, "presence", "present", "missing", false)
			continue
		}
		delete(current, want.IntervalOrder)

		rep.add(want.IntervalOrder, "status", want.Status, string(got.QualityStatus),
			want.Status == string(got.QualityStatus))
		rep.add(want.IntervalOrder, "reject_reason", orDash(want.RejectReason), orDash(got.AutoRejectReason),
			want.RejectReason == got.AutoRejectReason)
		rep.add(want.IntervalOrder, "duration_s",
			fmt.Sprintf("%d", want.DurationS), fmt.Sprintf("%d", got.DurationS),
			absInt(want.DurationS-got.DurationS) <= durTolSecs)
		rep.add(want.IntervalOrder, "peak_hr",
			fmt.Sprintf("%.1f", want.PeakHR), fmt.Sprintf("%.1f", got.PeakHR),
			math.Abs(want.PeakHR-got.PeakHR) <= hrTolerance)

		if want.HRR60 != nil {
			gotHRR, ok := got.HRRAbs[60]
			rep.add(want.IntervalOrder, "hrr_60",
				fmt.Sprintf("%.1f", *want.HRR60), floatOrDash(gotHRR, ok, "%.1f"),
				ok && math.Abs(*want.HRR60-gotHRR) <= hrTolerance)
		}
		if want.R2Primary != nil {
			gotR2, ok := got.R2[recovery.WindowPrimary]
			rep.add(want.IntervalOrder, "r2_0_60",
				fmt.Sprintf("%.3f", *want.R2Primary), floatOrDash(gotR2, ok, "%.3f"),
				ok && math.Abs(*want.R2Primary-gotR2) <= r2Tolerance)
		}
	}

	for order := range current {
		rep.add(order, "presence", "absent", "present", false)
	}

	return rep
}

// CheckJudgments verifies that every interval a human confirmed still
// survives the gates. A confirmed interval that the fresh run rejects, or
// that no longer exists near its judged start time, is a regression.
func CheckJudgments(rep *Report, judgments []recovery.HumanJudgment, intervals []recovery.Interval) {
	for _, j := range judgments {
		if j.Judgment != recovery.JudgmentConfirmed {
			continue
		}
		iv, ok := matchJudgment(j, intervals)
		if !ok {
			rep.JudgmentRegressions = append(rep.JudgmentRegressions,
				fmt.Sprintf("session %s order %d: confirmed interval no longer found near %s",
					j.SessionID, j.IntervalOrder, j.NominalStart.Format(time.RFC3339)))
			continue
		}
		if iv.QualityStatus == recovery.StatusRejected {
			rep.JudgmentRegressions = append(rep.JudgmentRegressions,
				fmt.Sprintf("session %s order %d: confirmed interval now rejected (%s)",
					j.SessionID, j.IntervalOrder, iv.AutoRejectReason))
		}
	}
}

// matchJudgment locates the interval a judgment refers to: same order, start
// within tolerance of the nominal start.
func matchJudgment(j recovery.HumanJudgment, intervals []recovery.Interval) (recovery.Interval, bool) {
	for _, iv := range intervals {
		if iv.IntervalOrder != j.IntervalOrder {
			continue
		}
		drift := iv.StartTime.Sub(j.NominalStart)
		if drift < 0 {
			drift = -drift
		}
		if drift <= judgmentStartTolS*time.Second {
			return iv, true
		}
	}
	return recovery.Interval{}, false
}

// #endregion compare

// #region helpers

func (r *Report) add(order int, field, want, got string, match bool) {
	r.Rows = append(r.Rows, Row{IntervalOrder: order, Field: field, Want: want, Got: got, Match: match})
	if !match {
		r.Divergences++
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func floatOrDash(v float64, ok bool, format string) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf(format, v)
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// #endregion helpers
