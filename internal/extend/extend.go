package extend

import (
	"github.com/brockwebb/arnold-sub002/internal/condition"
	"github.com/brockwebb/arnold-sub002/internal/config"
	"github.com/brockwebb/arnold-sub002/internal/recovery"
)

// #region result

// Extension is one peak grown forward into a bounded recovery window.
type Extension struct {
	Peak            int // detected peak, second offset
	Onset           int // onset-adjusted start (Peak + OnsetDelay)
	OnsetDelay      int
	OnsetConfidence recovery.Confidence
	End             int  // inclusive second offset
	Truncated       bool // ended on sustained rise rather than the cap
}

// Duration returns the measured window length in seconds, from onset.
func (e Extension) Duration() int { return e.End - e.Onset }

// #endregion result

// #region extend

// Extend grows an interval forward from the peak, tracking the running
// minimum HR and terminating on a sustained rise above it or on the hard cap.
// The rise tolerance loosens after the late-stage threshold because
// near-baseline HR naturally flutters. Onset detection then shifts the
// measurement start off any post-effort plateau, and a cap-terminated end is
// pushed out to compensate so the intended measurement duration survives the
// onset shift.
func Extend(s *condition.Series, peak int, cfg config.Config) Extension {
	end, truncated := terminate(s, peak, cfg)

	delay, conf := DetectOnset(s.HR[peak:end+1], cfg)
	onset := peak + delay

	if !truncated && delay > 0 {
		// Preserve the intended measurement duration despite the onset shift.
		want := onset + cfg.CapDurationS
		if want > s.Len()-1 {
			want = s.Len() - 1
		}
		if want > end {
			end = want
		}
	}
	if onset > end {
		onset = end
	}

	return Extension{
		Peak:            peak,
		Onset:           onset,
		OnsetDelay:      delay,
		OnsetConfidence: conf,
		End:             end,
		Truncated:       truncated,
	}
}

// terminate walks forward until a sustained rise above the running minimum or
// the hard cap.
func terminate(s *condition.Series, peak int, cfg config.Config) (int, bool) {
	cap := peak + cfg.CapDurationS
	if cap > s.Len()-1 {
		cap = s.Len() - 1
	}

	runMin := s.At(peak)
	riseLen := 0
	for t := peak + 1; t <= cap; t++ {
		hr := s.At(t)
		if hr < runMin {
			runMin = hr
		}
		tol := cfg.RiseTolerance
		if t-peak > cfg.LateStageAfterS {
			tol = cfg.LateRiseTolerance
		}
		if hr > runMin+tol {
			riseLen++
			if riseLen > cfg.RisePersistenceS {
				// End where the rise began, not where it was confirmed.
				return t - riseLen, true
			}
		} else {
			riseLen = 0
		}
	}
	return cap, false
}

// #endregion extend

// #region onset

// OnsetEstimator locates the offset where true exponential decay begins,
// relative to the detected peak. Estimators are independent; the ensemble
// combines them into a single confidence tier.
type OnsetEstimator interface {
	Name() string
	Estimate(seg []float64) (int, bool)
}

// DetectOnset runs the ensemble over the early portion of the interval. The
// latest-local-max estimate is used as the onset; the distance between
// estimators sets the confidence tier.
func DetectOnset(seg []float64, cfg config.Config) (int, recovery.Confidence) {
	estimators := []OnsetEstimator{
		latestLocalMax{lookahead: cfg.OnsetLookaheadS},
		largestNetDrop{window: 60, lookahead: cfg.OnsetLookaheadS},
	}

	offsets := make([]int, 0, len(estimators))
	for _, e := range estimators {
		if off, ok := e.Estimate(seg); ok {
			offsets = append(offsets, off)
		}
	}

	switch len(offsets) {
	case 0:
		return 0, recovery.ConfidenceLow
	case 1:
		return offsets[0], recovery.ConfidenceMedium
	}

	dist := offsets[0] - offsets[1]
	if dist < 0 {
		dist = -dist
	}
	conf := recovery.ConfidenceLow
	if dist <= cfg.OnsetAgreeTightS {
		conf = recovery.ConfidenceHigh
	} else if dist <= cfg.OnsetAgreeLooseS {
		conf = recovery.ConfidenceMedium
	}
	return offsets[0], conf
}

// latestLocalMax returns the last local maximum within the lookahead, which
// marks the tail of a post-effort plateau.
type latestLocalMax struct {
	lookahead int
}

func (latestLocalMax) Name() string { return "latest_local_max" }

func (e latestLocalMax) Estimate(seg []float64) (int, bool) {
	hi := e.lookahead
	if hi > len(seg)-2 {
		hi = len(seg) - 2
	}
	if hi < 1 {
		return 0, false
	}
	best := 0
	for i := 1; i <= hi; i++ {
		if seg[i] >= seg[i-1] && seg[i] >= seg[i+1] {
			best = i
		}
	}
	return best, true
}

// largestNetDrop returns the start of the sliding sub-window with the largest
// net HR drop; true decay starts where the drop is steepest end to end.
type largestNetDrop struct {
	window    int
	lookahead int
}

func (largestNetDrop) Name() string { return "largest_net_drop" }

func (e largestNetDrop) Estimate(seg []float64) (int, bool) {
	if len(seg) < e.window/2 {
		return 0, false
	}
	hiStart := e.lookahead
	if hiStart > len(seg)-2 {
		hiStart = len(seg) - 2
	}
	bestDrop := 0.0
	bestStart := -1
	for start := 0; start <= hiStart; start++ {
		end := start + e.window
		if end > len(seg)-1 {
			end = len(seg) - 1
		}
		if end <= start {
			break
		}
		drop := seg[start] - seg[end]
		if drop > bestDrop {
			bestDrop = drop
			bestStart = start
		}
	}
	if bestStart < 0 {
		return 0, false
	}
	return bestStart, true
}

// #endregion onset
