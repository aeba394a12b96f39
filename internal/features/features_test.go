package features

import (
	"math"
	"testing"

	"github.com/brockwebb/arnold-sub002/internal/config"
	"github.com/brockwebb/arnold-sub002/internal/recovery"
)

func decaySegment(peak, base, tau float64, secs int) []float64 {
	seg := make([]float64, secs+1)
	for i := 0; i <= secs; i++ {
		seg[i] = base + (peak-base)*math.Exp(-float64(i)/tau)
	}
	return seg
}

func TestComputeCleanDecay(t *testing.T) {
	cfg := config.Default()
	seg := decaySegment(170, 120, 60, 300)

	table := Compute(seg, 170, cfg)

	// Every configured window fits on a 300 s segment.
	for _, w := range recovery.Windows {
		r2, ok := table.R2[w.Name]
		if !ok {
			t.Fatalf("window %s missing", w.Name)
		}
		if r2 < 0.95 {
			t.Fatalf("window %s: expected near-perfect fit, got %.3f", w.Name, r2)
		}
	}

	// Offsets inside the segment get HR and HRR cells.
	for _, off := range recovery.Offsets {
		hr, ok := table.HRAt[off]
		if !ok {
			t.Fatalf("offset %d missing", off)
		}
		want := 120 + 50*math.Exp(-float64(off)/60)
		if math.Abs(hr-want) > 0.01 {
			t.Fatalf("offset %d: HR %.2f, want %.2f", off, hr, want)
		}
		if hrr := table.HRRAbs[off]; math.Abs(hrr-(170-want)) > 0.01 {
			t.Fatalf("offset %d: HRR %.2f, want %.2f", off, hrr, 170-want)
		}
	}

	// Tau recovered within grid resolution.
	if table.Tau < 45 || table.Tau > 80 {
		t.Fatalf("tau %.1f outside expected band around 60", table.Tau)
	}
	if table.TauClipped {
		t.Fatal("tau should not clip on a clean decay")
	}
	if table.LateSlope >= 0 {
		t.Fatalf("late slope should be negative on decay, got %.3f", table.LateSlope)
	}
}

func TestComputeShortSegment(t *testing.T) {
	cfg := config.Default()
	seg := decaySegment(170, 120, 40, 45)

	table := Compute(seg, 170, cfg)

	for _, name := range []string{"0_30", "15_45"} {
		if !table.HasWindow(name) {
			t.Fatalf("window %s should be computable on 45 s", name)
		}
	}
	for _, name := range []string{"0_60", "30_90", "0_300"} {
		if table.HasWindow(name) {
			t.Fatalf("window %s should not fit in 45 s", name)
		}
	}
	if _, ok := table.HRAt[30]; !ok {
		t.Fatal("offset 30 should be present")
	}
	if _, ok := table.HRAt[60]; ok {
		t.Fatal("offset 60 beyond segment end")
	}
	if table.LateSlope != 0 {
		t.Fatalf("late slope needs 120 s, got %.3f", table.LateSlope)
	}
}

func TestComputeFlatSegmentClipsTau(t *testing.T) {
	cfg := config.Default()
	seg := make([]float64, 301)
	for i := range seg {
		seg[i] = 130
	}

	table := Compute(seg, 130, cfg)
	if r2 := table.R2[recovery.WindowPrimary]; r2 != 0 {
		t.Fatalf("flat window should score 0, got %.3f", r2)
	}
	if !table.TauClipped {
		t.Fatal("flat segment should clip tau")
	}
	if table.Tau != cfg.TauMaxS {
		t.Fatalf("expected tau at clip bound %.0f, got %.1f", cfg.TauMaxS, table.Tau)
	}
}

func TestComputeNonMonotoneWindowScoresLow(t *testing.T) {
	cfg := config.Default()
	// Symmetric V inside the early window: drop 40, climb all the way back.
	// No monotone decay explains it; the cell still gets an explicit low value.
	seg := make([]float64, 301)
	for i := 0; i <= 15; i++ {
		seg[i] = 170 - float64(i)*(40.0/15)
	}
	for i := 16; i <= 30; i++ {
		seg[i] = 130 + float64(i-15)*(40.0/15)
	}
	for i := 31; i <= 300; i++ {
		seg[i] = 120 + 50*math.Exp(-float64(i-30)/60)
	}

	table := Compute(seg, 170, cfg)
	r2, ok := table.R2[recovery.WindowEarly]
	if !ok {
		t.Fatal("early window should still be computed")
	}
	if r2 > 0.5 {
		t.Fatalf("V-shaped window should fit poorly, got %.3f", r2)
	}
}

func TestWindowR2Bounds(t *testing.T) {
	cfg := config.Default()
	seg := decaySegment(170, 120, 40, 100)

	if r2, ok := WindowR2(seg, 0, 30, cfg); !ok || r2 < 0.95 {
		t.Fatalf("expected clean early fit, got (%.3f, %v)", r2, ok)
	}
	if _, ok := WindowR2(seg, 0, 150, cfg); ok {
		t.Fatal("window past segment end should not compute")
	}
	if _, ok := WindowR2(seg, 95, 100, cfg); ok {
		t.Fatal("six-sample window below the floor should not compute")
	}
}

func TestBestR2(t *testing.T) {
	table := Table{R2: map[string]float64{"0_30": 0.4, "0_60": 0.9, "0_120": 0.7}}
	best, ok := table.BestR2()
	if !ok || best != 0.9 {
		t.Fatalf("expected best 0.9, got (%.2f, %v)", best, ok)
	}

	empty := Table{R2: map[string]float64{}}
	if _, ok := empty.BestR2(); ok {
		t.Fatal("empty table has no best")
	}
}
