package features

import (
	"math"

	"github.com/brockwebb/arnold-sub002/internal/config"
	"github.com/brockwebb/arnold-sub002/internal/recovery"
)

// minWindowSamples is the floor below which a fit window is not attempted.
const minWindowSamples = 10

// #region table

// Table holds every computed feature for one interval, keyed by offset and
// window name. Cells are populated eagerly wherever samples exist; the
// quality gate reads from this table and never triggers computation. A low
// R² means "fit attempted and failed", not "missing".
type Table struct {
	HRAt   map[int]float64
	HRRAbs map[int]float64
	R2     map[string]float64

	Tau        float64
	TauClipped bool
	LateSlope  float64
}

// HasWindow reports whether the named window was computable.
func (t Table) HasWindow(name string) bool {
	_, ok := t.R2[name]
	return ok
}

// BestR2 returns the highest R² across all computed windows.
func (t Table) BestR2() (float64, bool) {
	best := math.Inf(-1)
	found := false
	for _, v := range t.R2 {
		if v > best {
			best = v
			found = true
		}
	}
	return best, found
}

// #endregion table

// #region compute

// Compute fills the feature table for an onset-adjusted segment. seg[0] is
// the onset; peakHR is the located peak value (which may precede the onset).
// Every window whose end lies within the segment and has at least ten samples
// gets an R², unconditionally: a longer window can recover where a shorter
// one fails, and gating reasons need explicit low values rather than gaps.
func Compute(seg []float64, peakHR float64, cfg config.Config) Table {
	t := Table{
		HRAt:   make(map[int]float64),
		HRRAbs: make(map[int]float64),
		R2:     make(map[string]float64),
	}

	for _, off := range recovery.Offsets {
		if off < len(seg) {
			t.HRAt[off] = seg[off]
			t.HRRAbs[off] = peakHR - seg[off]
		}
	}

	for _, w := range recovery.Windows {
		if w.End >= len(seg) || w.End-w.Start+1 < minWindowSamples {
			continue
		}
		fit := fitWindow(seg[w.Start:w.End+1], cfg.TauMaxS)
		t.R2[w.Name] = fit.R2
	}

	// Tau from the whole-segment fit.
	if len(seg) >= minWindowSamples {
		fit := fitWindow(seg, cfg.TauMaxS)
		t.Tau = fit.Tau
		t.TauClipped = fit.TauClipped
	}

	t.LateSlope = lateSlope(seg)

	return t
}

// WindowR2 fits a single ad-hoc window; used when deciding whether a forward
// re-anchor actually improved the early fit.
func WindowR2(seg []float64, start, end int, cfg config.Config) (float64, bool) {
	if end >= len(seg) || end-start+1 < minWindowSamples {
		return 0, false
	}
	return fitWindow(seg[start:end+1], cfg.TauMaxS).R2, true
}

// lateSlope is the least-squares slope over the 90-120 s window, in bpm/s,
// feeding the activity-resumed quality check.
func lateSlope(seg []float64) float64 {
	const lo, hi = 90, 120
	if len(seg) <= hi {
		return 0
	}
	return slope(seg[lo : hi+1])
}

// #endregion compute

// #region exponential-fit

// fitResult is the outcome of one window fit.
type fitResult struct {
	R2         float64
	Tau        float64
	TauClipped bool
}

// tauBounds are the bounded parameterizations tried in order; the first one
// that converges wins. Ranges overlap on purpose so a fit near a boundary is
// not lost to bracketing.
var tauBounds = [][2]float64{
	{10, 150},
	{100, 400},
	{300, 900},
}

// fitWindow fits hr(t) = base + amp·exp(−t/τ) to the window. For a fixed τ
// the model is linear in (base, amp), so each parameterization scans a τ grid
// with an exact least-squares solve per candidate. When no parameterization
// converges a fit-vs-mean heuristic substitutes, so no cell is ever empty.
func fitWindow(seg []float64, tauMax float64) fitResult {
	mean := 0.0
	for _, v := range seg {
		mean += v
	}
	mean /= float64(len(seg))
	var ssTot float64
	for _, v := range seg {
		d := v - mean
		ssTot += d * d
	}
	if ssTot == 0 {
		// Flat window: the mean explains everything, decay explains nothing.
		return fitResult{R2: 0, Tau: tauMax, TauClipped: true}
	}

	for _, bounds := range tauBounds {
		if r, ok := fitBounded(seg, bounds[0], bounds[1], ssTot); ok {
			if r.Tau > tauMax {
				r.Tau = tauMax
				r.TauClipped = true
			}
			return r
		}
	}

	// Heuristic substitute: straight-line fit vs mean.
	ssRes := linearSSE(seg)
	r2 := 1 - ssRes/ssTot
	if r2 < 0 {
		r2 = 0
	}
	return fitResult{R2: r2, Tau: tauMax, TauClipped: true}
}

// fitBounded scans a τ grid within [lo, hi]. Convergence means the best
// candidate describes a genuine decay: positive amplitude and a residual
// improvement over the mean model.
func fitBounded(seg []float64, lo, hi, ssTot float64) (fitResult, bool) {
	const steps = 24
	bestSSE := math.Inf(1)
	bestTau := 0.0
	bestAmp := 0.0

	ratio := math.Pow(hi/lo, 1/float64(steps-1))
	tau := lo
	for s := 0; s < steps; s++ {
		_, amp, sse, ok := solveLinear(seg, tau)
		if ok && sse < bestSSE {
			bestSSE = sse
			bestTau = tau
			bestAmp = amp
		}
		tau *= ratio
	}

	if bestTau == 0 || bestAmp <= 0 {
		return fitResult{}, false
	}
	r2 := 1 - bestSSE/ssTot
	if r2 < 0 {
		r2 = 0
	}
	return fitResult{R2: r2, Tau: bestTau}, true
}

// solveLinear solves min over (base, amp) of Σ(y − base − amp·e^{−t/τ})².
func solveLinear(seg []float64, tau float64) (base, amp, sse float64, ok bool) {
	n := float64(len(seg))
	var sumE, sumEE, sumY, sumEY float64
	for t, y := range seg {
		e := math.Exp(-float64(t) / tau)
		sumE += e
		sumEE += e * e
		sumY += y
		sumEY += e * y
	}
	den := n*sumEE - sumE*sumE
	if den == 0 {
		return 0, 0, 0, false
	}
	amp = (n*sumEY - sumE*sumY) / den
	base = (sumY - amp*sumE) / n

	for t, y := range seg {
		r := y - base - amp*math.Exp(-float64(t)/tau)
		sse += r * r
	}
	return base, amp, sse, true
}

// #endregion exponential-fit

// #region linear-helpers

// slope is the least-squares slope of the segment, one sample per second.
func slope(seg []float64) float64 {
	n := float64(len(seg))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range seg {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / den
}

// linearSSE is the residual sum of squares of a straight-line fit.
func linearSSE(seg []float64) float64 {
	m := slope(seg)
	var meanX, meanY float64
	for i, y := range seg {
		meanX += float64(i)
		meanY += y
	}
	meanX /= float64(len(seg))
	meanY /= float64(len(seg))
	b := meanY - m*meanX

	var sse float64
	for i, y := range seg {
		r := y - (m*float64(i) + b)
		sse += r * r
	}
	return sse
}

// #endregion linear-helpers
