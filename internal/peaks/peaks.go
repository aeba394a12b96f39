package peaks

import (
	"sort"

	"github.com/brockwebb/arnold-sub002/internal/condition"
	"github.com/brockwebb/arnold-sub002/internal/config"
	"github.com/brockwebb/arnold-sub002/internal/recovery"
)

// #region detect

// Detect finds candidate effort peaks: local maxima rising at least
// ProminenceMin bpm above the surrounding valley and separated by at least
// DistanceMin seconds. Returns second offsets in ascending time order.
func Detect(s *condition.Series, cfg config.Config) []int {
	hr := s.HR
	var candidates []int
	for i := 1; i < len(hr)-1; i++ {
		if hr[i] < hr[i-1] || hr[i] < hr[i+1] {
			continue
		}
		// Plateau handling: anchor on the first sample of a flat top. The
		// onset ensemble walks the measurement start off the plateau later.
		if hr[i] == hr[i-1] {
			continue
		}
		if prominence(hr, i) >= cfg.ProminenceMin {
			candidates = append(candidates, i)
		}
	}

	// Enforce minimum separation, keeping taller peaks first.
	sort.Slice(candidates, func(a, b int) bool {
		if hr[candidates[a]] != hr[candidates[b]] {
			return hr[candidates[a]] > hr[candidates[b]]
		}
		return candidates[a] < candidates[b]
	})
	var kept []int
	for _, c := range candidates {
		ok := true
		for _, k := range kept {
			if abs(c-k) < cfg.DistanceMin {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, c)
		}
	}
	sort.Ints(kept)
	return kept
}

// prominence measures how far the peak rises above the higher of the two
// valleys separating it from taller terrain (or the series edge).
func prominence(hr []float64, peak int) float64 {
	left := hr[peak]
	for i := peak - 1; i >= 0; i-- {
		if hr[i] > hr[peak] {
			break
		}
		if hr[i] < left {
			left = hr[i]
		}
	}
	right := hr[peak]
	for i := peak + 1; i < len(hr); i++ {
		if hr[i] > hr[peak] {
			break
		}
		if hr[i] < right {
			right = hr[i]
		}
	}
	valley := left
	if right > valley {
		valley = right
	}
	return hr[peak] - valley
}

// #endregion detect

// #region adjustments

// ApplyAdjustments shifts detected peaks by any stored human adjustment,
// matched by interval order. Adjustments are an override: an adjusted peak is
// exempt from the automated searches, so the analyst's shift sticks exactly.
// Out-of-range shifts clamp to the series bounds. Returns the peaks in time
// order plus the set of adjusted positions.
func ApplyAdjustments(s *condition.Series, detected []int, adjustments []recovery.PeakAdjustment) ([]int, map[int]bool) {
	adjusted := make(map[int]bool, len(adjustments))
	if len(adjustments) == 0 {
		return detected, adjusted
	}
	byOrder := make(map[int]int, len(adjustments))
	for _, a := range adjustments {
		byOrder[a.IntervalOrder] = a.ShiftSeconds
	}
	out := make([]int, len(detected))
	for i, p := range detected {
		shift, ok := byOrder[i]
		if !ok {
			out[i] = p
			continue
		}
		np := p + shift
		if np < 0 {
			np = 0
		}
		if np >= s.Len() {
			np = s.Len() - 1
		}
		out[i] = np
		adjusted[np] = true
	}
	sort.Ints(out)
	return out, adjusted
}

// #endregion adjustments

// #region backward-search

// BackwardSearch scans a lookback window behind the detected peak and, when
// HR there exceeds the detection by at least the margin, relocates the peak
// to the last occurrence of that maximum. Fixes detectors that anchor on the
// tail of a gradual-deceleration plateau. Never returns a lower peak HR.
func BackwardSearch(s *condition.Series, peak int, cfg config.Config) int {
	lo := peak - cfg.BackwardLookback
	if lo < 0 {
		lo = 0
	}
	best := s.At(peak)
	bestIdx := peak
	for i := lo; i < peak; i++ {
		if s.At(i) >= best {
			best = s.At(i)
			bestIdx = i
		}
	}
	if bestIdx != peak && best >= s.At(peak)+cfg.BackwardMargin {
		// Last occurrence of the maximum inside the window.
		last := bestIdx
		for i := bestIdx + 1; i < peak; i++ {
			if s.At(i) == best {
				last = i
			}
		}
		return last
	}
	return peak
}

// #endregion backward-search

// #region reanchor

// reanchorDisagreeS is the estimator disagreement beyond which the geometric
// inflection result is discarded; it fails on long gently-declining plateaus.
const reanchorDisagreeS = 10

// ReAnchor searches forward from a peak for where sustained monotonic decline
// truly begins, for plateau and double-peak candidates whose early fit is
// poor. Two independent estimators run; on disagreement the slope scan wins.
// Returns the new anchor and whether it moved.
func ReAnchor(s *condition.Series, peak int, cfg config.Config) (int, bool) {
	maxShift := cfg.ReanchorMaxShift
	if peak+maxShift >= s.Len() {
		maxShift = s.Len() - peak - 1
	}
	if maxShift < 5 {
		return peak, false
	}

	slopeIdx, slopeOK := slopeScan(s.HR, peak, maxShift)
	inflIdx, inflOK := inflectionSearch(s.HR, peak, maxShift)

	var anchor int
	switch {
	case slopeOK && inflOK:
		anchor = slopeIdx
		if abs(slopeIdx-inflIdx) <= reanchorDisagreeS {
			// Agreement: split the difference toward the later estimate.
			if inflIdx > slopeIdx {
				anchor = inflIdx
			}
		}
	case slopeOK:
		anchor = slopeIdx
	case inflOK:
		anchor = inflIdx
	default:
		return peak, false
	}

	if anchor <= peak {
		return peak, false
	}
	return anchor, true
}

// slopeScan returns the first index after peak where the local regression
// slope turns into a sustained decline. The window must top out at its start:
// a V-shaped dip between two close peaks has a negative regression slope too,
// but decline has not truly begun until nothing ahead climbs back over it.
func slopeScan(hr []float64, peak, maxShift int) (int, bool) {
	const lookS = 15
	const declineSlope = -0.10 // bpm/s
	for t := peak; t <= peak+maxShift; t++ {
		hi := t + lookS
		if hi >= len(hr) {
			break
		}
		if localSlope(hr, t, hi) <= declineSlope && windowTop(hr, t, hi) {
			return t, true
		}
	}
	return 0, false
}

// windowTop reports whether no sample in (lo, hi] rises meaningfully above
// the window's first sample.
func windowTop(hr []float64, lo, hi int) bool {
	for i := lo + 1; i <= hi; i++ {
		if hr[i] > hr[lo]+0.5 {
			return false
		}
	}
	return true
}

// inflectionSearch finds the knee of the segment: the point with maximum
// vertical distance below the chord from the peak to the segment end.
func inflectionSearch(hr []float64, peak, maxShift int) (int, bool) {
	end := peak + maxShift
	if end >= len(hr) {
		end = len(hr) - 1
	}
	if end <= peak+1 {
		return 0, false
	}
	x0, y0 := float64(peak), hr[peak]
	x1, y1 := float64(end), hr[end]
	slope := (y1 - y0) / (x1 - x0)

	best := 0.0
	bestIdx := -1
	for i := peak + 1; i < end; i++ {
		chord := y0 + slope*(float64(i)-x0)
		d := chord - hr[i]
		if d > best {
			best = d
			bestIdx = i
		}
	}
	if bestIdx < 0 || best < 1.0 {
		return 0, false
	}
	return bestIdx, true
}

// localSlope is the least-squares slope of hr over [lo, hi].
func localSlope(hr []float64, lo, hi int) float64 {
	n := float64(hi - lo + 1)
	var sumX, sumY, sumXY, sumXX float64
	for i := lo; i <= hi; i++ {
		x := float64(i - lo)
		sumX += x
		sumY += hr[i]
		sumXY += x * hr[i]
		sumXX += x * x
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / den
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// #endregion reanchor
