package gate

import (
	"fmt"

	"github.com/brockwebb/arnold-sub002/internal/config"
	"github.com/brockwebb/arnold-sub002/internal/recovery"
)

// #region gate

// shortDurationS is the duration under which a truncated interval is treated
// as activity resumed rather than a clean-but-short recovery.
const shortDurationS = 90

// Gate applies the ordered hard-reject rules and the soft-flag rules to one
// interval's diagnostics.
type Gate struct {
	config config.Config
}

// NewGate creates a gate with the given configuration.
func NewGate(cfg config.Config) *Gate {
	return &Gate{config: cfg}
}

// Evaluate runs the hard-reject gates in order (first match wins), then the
// soft flags. A rejected interval keeps its flags and diagnostics.
func (g *Gate) Evaluate(in Input) Decision {
	flags := g.softFlags(in)

	if reason, rejected := g.hardReject(in); rejected {
		return Decision{
			Status:       recovery.StatusRejected,
			RejectReason: reason,
			Flags:        flags,
		}
	}

	status := recovery.StatusPass
	if reviewable(flags) {
		status = recovery.StatusFlagged
	}
	return Decision{Status: status, Flags: flags}
}

// hardReject walks the ordered gates. Order matters: the earliest failing
// gate names the reason even when later gates would also fail.
func (g *Gate) hardReject(in Input) (string, bool) {
	t := in.Features

	// 1. Primary 0-60 window could not be computed at all.
	if !t.HasWindow(recovery.WindowPrimary) {
		return recovery.RejectInsufficientDuration, true
	}

	// 2. Activity resumed: the extender hit a sustained rise early, or the
	// late-window slope climbs past the hard threshold.
	if in.Truncated && in.DurationS < shortDurationS {
		return recovery.RejectActivityResumed, true
	}
	if t.LateSlope > g.config.LateSlopeMax {
		return recovery.RejectActivityResumed, true
	}

	// 3. No fit window produced any R².
	best, ok := t.BestR2()
	if !ok {
		return recovery.RejectNoValidWindows, true
	}

	// 4. Even the best window fits poorly.
	if best < g.config.BestR2Min {
		return recovery.RejectPoorFitQuality, true
	}

	// 5. Primary window below threshold.
	if t.R2[recovery.WindowPrimary] < g.config.PrimaryR2Min {
		return recovery.RejectPrimaryLowR2, true
	}

	// 6. Early window below its lower threshold: an unresolved double peak.
	// Only reached when the forward re-anchor already failed to fix it.
	if r2, ok := t.R2[recovery.WindowEarly]; ok && r2 < g.config.EarlyR2Min {
		return recovery.RejectDoublePeak, true
	}

	return "", false
}

// softFlags marks conditions worth review without rejecting.
func (g *Gate) softFlags(in Input) []string {
	var flags []string

	if in.Reanchored {
		flags = append(flags, recovery.FlagReanchored)
	}
	if in.OnsetConfidence == recovery.ConfidenceLow {
		flags = append(flags, recovery.FlagOnsetDisagreement)
	}
	if in.RestingHR > 0 && in.PeakHR-in.RestingHR < g.config.ReserveFloor {
		flags = append(flags, recovery.FlagLowSignal)
	}
	// Any positive late slope under the hard threshold still deserves a look.
	if in.Features.LateSlope > 0 && in.Features.LateSlope <= g.config.LateSlopeMax {
		flags = append(flags, recovery.FlagLatePositiveSlope)
	}

	return flags
}

// reviewable reports whether any flag should demote a pass to flagged. The
// re-anchor flag is informational only.
func reviewable(flags []string) bool {
	for _, f := range flags {
		if f != recovery.FlagReanchored {
			return true
		}
	}
	return false
}

// #endregion gate

// #region resolve

// Resolve applies the status precedence chain: automated result, then a human
// quality override when present. The automated result is returned alongside
// so it stays reproducible and auditable independent of human edits.
func Resolve(auto Decision, override *recovery.QualityOverride) (final recovery.Status, note string) {
	if override == nil {
		return auto.Status, ""
	}
	return override.ForcedStatus, fmt.Sprintf("override: %s", override.Reason)
}

// #endregion resolve
