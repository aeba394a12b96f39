package peaks

import (
	"math"
	"testing"
	"time"

	"github.com/brockwebb/arnold-sub002/internal/condition"
	"github.com/brockwebb/arnold-sub002/internal/config"
	"github.com/brockwebb/arnold-sub002/internal/recovery"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func series(hr []float64) *condition.Series {
	return &condition.Series{Start: t0, HR: hr}
}

// hill appends a symmetric rise-and-fall of the given height onto base.
func hill(hr []float64, base, height float64, halfWidth int) []float64 {
	for i := 0; i <= 2*halfWidth; i++ {
		frac := 1 - math.Abs(float64(i-halfWidth))/float64(halfWidth)
		hr = append(hr, base+height*frac)
	}
	return hr
}

func flat(hr []float64, level float64, secs int) []float64 {
	for i := 0; i < secs; i++ {
		hr = append(hr, level)
	}
	return hr
}

func TestDetectTwoSeparatedPeaks(t *testing.T) {
	cfg := config.Default()
	var hr []float64
	hr = flat(hr, 100, 30)
	hr = hill(hr, 100, 50, 40) // peak near second 70
	hr = flat(hr, 100, 60)
	hr = hill(hr, 100, 40, 40) // peak near second 210
	hr = flat(hr, 100, 30)

	got := Detect(series(hr), cfg)
	if len(got) != 2 {
		t.Fatalf("expected 2 peaks, got %d (%v)", len(got), got)
	}
	if got[0] >= got[1] {
		t.Fatalf("peaks not in time order: %v", got)
	}
	if d := got[1] - got[0]; d < cfg.DistanceMin {
		t.Fatalf("peaks too close: %d", d)
	}
}

func TestDetectIgnoresLowProminence(t *testing.T) {
	var hr []float64
	hr = flat(hr, 100, 30)
	hr = hill(hr, 100, 8, 20) // below ProminenceMin
	hr = flat(hr, 100, 30)

	if got := Detect(series(hr), config.Default()); len(got) != 0 {
		t.Fatalf("expected no peaks, got %v", got)
	}
}

func TestDetectClosePairKeepsTaller(t *testing.T) {
	var hr []float64
	hr = flat(hr, 100, 30)
	hr = hill(hr, 100, 40, 20) // shorter, near second 50
	hr = hill(hr, 100, 60, 20) // taller, ~40s later
	hr = flat(hr, 100, 30)

	got := Detect(series(hr), config.Default())
	if len(got) != 1 {
		t.Fatalf("expected 1 peak, got %v", got)
	}
	s := series(hr)
	if s.At(got[0]) < 155 {
		t.Fatalf("kept the shorter peak: HR %.1f at %d", s.At(got[0]), got[0])
	}
}

func TestDetectPlateauTakesFirstSample(t *testing.T) {
	var hr []float64
	hr = flat(hr, 100, 30)
	for i := 0; i < 30; i++ { // rise
		hr = append(hr, 100+float64(i)*2)
	}
	plateauStart := len(hr)
	hr = flat(hr, 160, 10) // flat top
	for i := 0; i < 30; i++ { // fall
		hr = append(hr, 158-float64(i)*2)
	}
	hr = flat(hr, 100, 30)

	got := Detect(series(hr), config.Default())
	if len(got) != 1 {
		t.Fatalf("expected 1 peak, got %v", got)
	}
	if got[0] != plateauStart {
		t.Fatalf("expected plateau start %d, got %d", plateauStart, got[0])
	}
}

func TestBackwardSearchRelocatesToEarlierMax(t *testing.T) {
	cfg := config.Default()
	var hr []float64
	hr = flat(hr, 100, 50)
	for i := 0; i < 50; i++ { // rise to 180 at second 100
		hr = append(hr, 100+float64(i+1)*1.6)
	}
	trueTop := len(hr) - 1
	for i := 0; i < 30; i++ { // gradual-deceleration drift down
		hr = append(hr, 180-float64(i+1)*0.2)
	}
	detected := len(hr) - 1 // detector anchored at the drift tail, 174
	for i := 0; i < 60; i++ {
		hr = append(hr, 174-float64(i+1))
	}

	s := series(hr)
	got := BackwardSearch(s, detected, cfg)
	if got != trueTop {
		t.Fatalf("expected relocation to %d, got %d", trueTop, got)
	}
}

func TestBackwardSearchNeverLowersPeak(t *testing.T) {
	cfg := config.Default()
	var hr []float64
	hr = flat(hr, 100, 60)
	hr = hill(hr, 100, 70, 60)
	hr = flat(hr, 100, 60)
	s := series(hr)

	for _, peak := range []int{60, 90, 120, 150, 180} {
		got := BackwardSearch(s, peak, cfg)
		if s.At(got) < s.At(peak) {
			t.Fatalf("peak lowered: %.1f at %d -> %.1f at %d", s.At(peak), peak, s.At(got), got)
		}
	}
}

func TestBackwardSearchRespectsMargin(t *testing.T) {
	cfg := config.Default()
	var hr []float64
	hr = flat(hr, 100, 60)
	hr = append(hr, 171) // barely above, inside lookback
	hr = flat(hr, 150, 44)
	detected := len(hr)
	hr = append(hr, 170)
	hr = flat(hr, 120, 60)

	// 171 is only 1 bpm above the detected 170; below the margin, stay put.
	if got := BackwardSearch(series(hr), detected, cfg); got != detected {
		t.Fatalf("relocated on sub-margin difference: %d -> %d", detected, got)
	}
}

func TestApplyAdjustmentsShiftAndClamp(t *testing.T) {
	s := series(flat(nil, 100, 200))
	detected := []int{50, 150}

	adjusted, pinned := ApplyAdjustments(s, detected, []recovery.PeakAdjustment{
		{IntervalOrder: 0, ShiftSeconds: -10},
		{IntervalOrder: 1, ShiftSeconds: 500}, // clamps to series end
	})
	if adjusted[0] != 40 {
		t.Fatalf("expected 40, got %d", adjusted[0])
	}
	if adjusted[1] != 199 {
		t.Fatalf("expected clamp to 199, got %d", adjusted[1])
	}
	if !pinned[40] || !pinned[199] {
		t.Fatalf("adjusted positions not pinned: %v", pinned)
	}

	// No adjustments: unchanged slice, nothing pinned.
	same, none := ApplyAdjustments(s, detected, nil)
	if same[0] != 50 || same[1] != 150 {
		t.Fatalf("unexpected change without adjustments: %v", same)
	}
	if len(none) != 0 {
		t.Fatalf("nothing should be pinned: %v", none)
	}
}

func TestReAnchorFindsDeclineAfterPlateau(t *testing.T) {
	cfg := config.Default()
	var hr []float64
	hr = flat(hr, 100, 50)
	peak := len(hr)
	hr = append(hr, 170)
	for i := 0; i < 40; i++ { // near-flat drift after the peak
		hr = append(hr, 170-float64(i+1)*0.05)
	}
	kneeStart := len(hr)
	for i := 0; i < 120; i++ { // steep true decay
		hr = append(hr, 168-48*(1-math.Exp(-float64(i+1)/30)))
	}
	hr = flat(hr, 120, 60)

	anchor, moved := ReAnchor(series(hr), peak, cfg)
	if !moved {
		t.Fatal("expected re-anchor to move")
	}
	if anchor <= peak || anchor > kneeStart+5 {
		t.Fatalf("anchor %d outside plateau span (peak %d, knee %d)", anchor, peak, kneeStart)
	}
}

func TestReAnchorStaysOnImmediateDecay(t *testing.T) {
	cfg := config.Default()
	var hr []float64
	hr = flat(hr, 100, 50)
	peak := len(hr)
	for i := 0; i <= 200; i++ {
		hr = append(hr, 120+50*math.Exp(-float64(i)/40))
	}

	if _, moved := ReAnchor(series(hr), peak, cfg); moved {
		t.Fatal("re-anchor moved on a clean immediate decay")
	}
}
