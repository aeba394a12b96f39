package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brockwebb/arnold-sub002/internal/condition"
	"github.com/brockwebb/arnold-sub002/internal/config"
	"github.com/brockwebb/arnold-sub002/internal/extend"
	"github.com/brockwebb/arnold-sub002/internal/features"
	"github.com/brockwebb/arnold-sub002/internal/gate"
	"github.com/brockwebb/arnold-sub002/internal/peaks"
	"github.com/brockwebb/arnold-sub002/internal/recovery"
)

// #region result

// Result is one session's complete pipeline output, ready to persist.
type Result struct {
	Session   recovery.Session
	Intervals []recovery.Interval
	Counts    recovery.RunCounts
}

// #endregion result

// #region extract

// Extract runs the full per-session pipeline: condition, locate peaks, extend
// each into a recovery window, compute features, gate, then resolve overlaps.
// Pure with respect to storage; deterministic for identical inputs and config.
func Extract(
	session recovery.Session,
	samples []recovery.Sample,
	adjustments []recovery.PeakAdjustment,
	overrides []recovery.QualityOverride,
	cfg config.Config,
) (Result, error) {
	res := Result{Session: session}

	if len(samples) < cfg.MinSessionSecs {
		return Result{}, fmt.Errorf("session %s: %d samples below floor %d", session.ID, len(samples), cfg.MinSessionSecs)
	}

	series, err := condition.Condition(samples, cfg)
	if err != nil {
		return Result{}, fmt.Errorf("session %s: %w", session.ID, err)
	}

	detected := peaks.Detect(series, cfg)
	detected, pinned := peaks.ApplyAdjustments(series, detected, adjustments)

	overrideByOrder := make(map[int]*recovery.QualityOverride, len(overrides))
	for i := range overrides {
		overrideByOrder[overrides[i].IntervalOrder] = &overrides[i]
	}

	g := gate.NewGate(cfg)
	for order, p := range detected {
		iv := buildInterval(series, p, session, cfg, g, pinned[p])
		iv.IntervalOrder = order
		res.Intervals = append(res.Intervals, iv)
	}

	resolveOverlaps(res.Intervals)

	// Status precedence chain: automated (including overlap rejection), then
	// any human override.
	for i := range res.Intervals {
		iv := &res.Intervals[i]
		iv.AutoStatus = iv.QualityStatus
		final, _ := gate.Resolve(gate.Decision{Status: iv.QualityStatus}, overrideByOrder[iv.IntervalOrder])
		iv.QualityStatus = final
	}

	for i := range res.Intervals {
		switch res.Intervals[i].QualityStatus {
		case recovery.StatusPass:
			res.Counts.Pass++
		case recovery.StatusFlagged:
			res.Counts.Flagged++
		default:
			res.Counts.Rejected++
		}
	}
	return res, nil
}

// buildInterval grows one located peak into a fully-featured interval,
// attempting a forward re-anchor when the naive early fit is poor. A pinned
// peak carries a human adjustment; the adjustment is an override, so both
// automated searches stand down and the analyst's position is used as is.
func buildInterval(
	series *condition.Series,
	peak int,
	session recovery.Session,
	cfg config.Config,
	g *gate.Gate,
	pinned bool,
) recovery.Interval {
	if !pinned {
		peak = peaks.BackwardSearch(series, peak, cfg)
	}

	ext := extend.Extend(series, peak, cfg)
	seg := series.HR[ext.Onset : ext.End+1]
	peakHR := series.At(peak)
	table := features.Compute(seg, peakHR, cfg)
	reanchored := false

	// Plateau / double-peak repair: when the naive early fit is poor, or the
	// early window never materialized because the extension collapsed on an
	// immediate rise, search forward for where decline truly begins and
	// rebuild from there. A rebuild that lands short of the true decline (a
	// suppressed close twin still ahead of the anchor) collapses the same
	// way, so a failed rebuild advances the search past its anchor and tries
	// again within the shift budget. If nothing lifts the early fit over the
	// threshold the original interval rides into the hard-reject gates.
	r2, hasEarly := table.R2[recovery.WindowEarly]
	if !pinned && ((hasEarly && r2 < cfg.EarlyR2Min) || (!hasEarly && ext.Truncated)) {
		for base := peak; ; {
			anchor, moved := peaks.ReAnchor(series, base, cfg)
			if !moved || anchor-peak > cfg.ReanchorMaxShift {
				break
			}
			newExt := extend.Extend(series, anchor, cfg)
			newSeg := series.HR[newExt.Onset : newExt.End+1]
			if newR2, ok := features.WindowR2(newSeg, 0, 30, cfg); ok && newR2 >= cfg.EarlyR2Min {
				ext = newExt
				seg = newSeg
				if series.At(anchor) > peakHR {
					peakHR = series.At(anchor)
				}
				table = features.Compute(seg, peakHR, cfg)
				reanchored = true
				break
			}
			base = anchor
		}
	}

	decision := g.Evaluate(gate.Input{
		DurationS:       ext.Duration(),
		Truncated:       ext.Truncated,
		Features:        table,
		OnsetConfidence: ext.OnsetConfidence,
		PeakHR:          peakHR,
		RestingHR:       session.RestingHR,
		Reanchored:      reanchored || ext.OnsetDelay > 0,
	})

	return recovery.Interval{
		ID:        uuid.New().String(),
		SessionID: session.ID,

		StartTime: series.TimeAt(ext.Onset),
		EndTime:   series.TimeAt(ext.End),
		DurationS: ext.Duration(),

		PeakHR:          peakHR,
		OnsetDelayS:     ext.OnsetDelay,
		OnsetConfidence: ext.OnsetConfidence,

		HRAt:   table.HRAt,
		HRRAbs: table.HRRAbs,
		R2:     table.R2,

		Tau:        table.Tau,
		TauClipped: table.TauClipped,
		LateSlope:  table.LateSlope,

		QualityStatus:    decision.Status,
		AutoRejectReason: decision.RejectReason,
		QualityFlags:     decision.Flags,
	}
}

// #endregion extract

// #region overlap

// resolveOverlaps walks intervals in time order after re-anchoring has
// settled every boundary. When an interval does not start strictly after its
// predecessor ends, the predecessor is rejected as a duplicate in favor of
// the later, presumably truer peak. Diagnostics stay intact.
func resolveOverlaps(intervals []recovery.Interval) {
	for i := 1; i < len(intervals); i++ {
		prev := &intervals[i-1]
		cur := &intervals[i]
		if !cur.StartTime.After(prev.EndTime) {
			prev.QualityStatus = recovery.StatusRejected
			prev.AutoRejectReason = recovery.RejectOverlapDuplicate
			prev.EndTime = cur.StartTime.Add(-time.Second)
			if prev.EndTime.Before(prev.StartTime) {
				prev.EndTime = prev.StartTime
			}
			prev.DurationS = int(prev.EndTime.Sub(prev.StartTime) / time.Second)
		}
	}
}

// #endregion overlap
