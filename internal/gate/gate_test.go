package gate

import (
	"testing"

	"github.com/brockwebb/arnold-sub002/internal/config"
	"github.com/brockwebb/arnold-sub002/internal/features"
	"github.com/brockwebb/arnold-sub002/internal/recovery"
)

// cleanInput builds an interval that passes every gate with no flags.
func cleanInput() Input {
	return Input{
		DurationS: 300,
		Features: features.Table{
			R2: map[string]float64{
				recovery.WindowEarly:   0.92,
				recovery.WindowPrimary: 0.95,
				"0_120":                0.96,
			},
			LateSlope: -0.05,
		},
		OnsetConfidence: recovery.ConfidenceHigh,
		PeakHR:          172,
		RestingHR:       55,
	}
}

func TestGatePassClean(t *testing.T) {
	g := NewGate(config.Default())
	d := g.Evaluate(cleanInput())
	if d.Status != recovery.StatusPass {
		t.Fatalf("expected pass, got %s (%s)", d.Status, d.RejectReason)
	}
	if len(d.Flags) != 0 {
		t.Fatalf("expected no flags, got %v", d.Flags)
	}
}

func TestGateHardRejects(t *testing.T) {
	g := NewGate(config.Default())

	cases := []struct {
		name   string
		mutate func(*Input)
		reason string
	}{
		{
			"missing primary window",
			func(in *Input) { delete(in.Features.R2, recovery.WindowPrimary) },
			recovery.RejectInsufficientDuration,
		},
		{
			"truncated short interval",
			func(in *Input) { in.Truncated = true; in.DurationS = 80 },
			recovery.RejectActivityResumed,
		},
		{
			"late slope over threshold",
			func(in *Input) { in.Features.LateSlope = 0.2 },
			recovery.RejectActivityResumed,
		},
		{
			"best window poor",
			func(in *Input) {
				in.Features.R2 = map[string]float64{
					recovery.WindowEarly:   0.5,
					recovery.WindowPrimary: 0.6,
					"0_120":                0.55,
				}
			},
			recovery.RejectPoorFitQuality,
		},
		{
			"primary low",
			func(in *Input) { in.Features.R2[recovery.WindowPrimary] = 0.72 },
			recovery.RejectPrimaryLowR2,
		},
		{
			"early window double peak",
			func(in *Input) { in.Features.R2[recovery.WindowEarly] = 0.4 },
			recovery.RejectDoublePeak,
		},
	}
	for _, tc := range cases {
		in := cleanInput()
		tc.mutate(&in)
		d := g.Evaluate(in)
		if d.Status != recovery.StatusRejected {
			t.Errorf("%s: expected rejection, got %s", tc.name, d.Status)
			continue
		}
		if d.RejectReason != tc.reason {
			t.Errorf("%s: expected %s, got %s", tc.name, tc.reason, d.RejectReason)
		}
	}
}

func TestGateOrderEarliestReasonWins(t *testing.T) {
	g := NewGate(config.Default())

	// Truncated-and-short outranks the fit-quality gates even when both fail.
	in := cleanInput()
	in.Truncated = true
	in.DurationS = 70
	in.Features.R2[recovery.WindowPrimary] = 0.3

	d := g.Evaluate(in)
	if d.RejectReason != recovery.RejectActivityResumed {
		t.Fatalf("expected activity_resumed to win, got %s", d.RejectReason)
	}

	// A long truncated interval skips gate 2 and falls through to the fit gates.
	in = cleanInput()
	in.Truncated = true
	in.DurationS = 200
	in.Features.R2[recovery.WindowPrimary] = 0.72
	d = g.Evaluate(in)
	if d.RejectReason != recovery.RejectPrimaryLowR2 {
		t.Fatalf("expected primary_low_r2, got %s", d.RejectReason)
	}
}

func TestGateSoftFlags(t *testing.T) {
	g := NewGate(config.Default())

	in := cleanInput()
	in.OnsetConfidence = recovery.ConfidenceLow
	d := g.Evaluate(in)
	if d.Status != recovery.StatusFlagged {
		t.Fatalf("expected flagged on onset disagreement, got %s", d.Status)
	}
	if !hasFlag(d.Flags, recovery.FlagOnsetDisagreement) {
		t.Fatalf("missing onset_disagreement flag: %v", d.Flags)
	}

	in = cleanInput()
	in.PeakHR = 75 // 20 bpm over resting, under the reserve floor
	d = g.Evaluate(in)
	if !hasFlag(d.Flags, recovery.FlagLowSignal) || d.Status != recovery.StatusFlagged {
		t.Fatalf("expected low_signal flag, got %s %v", d.Status, d.Flags)
	}

	// Zero resting HR disables the reserve check entirely.
	in = cleanInput()
	in.PeakHR = 75
	in.RestingHR = 0
	d = g.Evaluate(in)
	if hasFlag(d.Flags, recovery.FlagLowSignal) {
		t.Fatalf("low_signal should need a resting baseline: %v", d.Flags)
	}

	in = cleanInput()
	in.Features.LateSlope = 0.1 // positive but under the hard threshold
	d = g.Evaluate(in)
	if d.Status != recovery.StatusFlagged || !hasFlag(d.Flags, recovery.FlagLatePositiveSlope) {
		t.Fatalf("expected late_positive_slope flag, got %s %v", d.Status, d.Flags)
	}

	// Barely positive counts too; only a flat or falling late slope is clean.
	in = cleanInput()
	in.Features.LateSlope = 0.02
	d = g.Evaluate(in)
	if !hasFlag(d.Flags, recovery.FlagLatePositiveSlope) {
		t.Fatalf("small positive slope should flag, got %v", d.Flags)
	}
}

func TestGateReanchorFlagDoesNotDemote(t *testing.T) {
	g := NewGate(config.Default())
	in := cleanInput()
	in.Reanchored = true

	d := g.Evaluate(in)
	if d.Status != recovery.StatusPass {
		t.Fatalf("reanchored alone should stay pass, got %s", d.Status)
	}
	if !hasFlag(d.Flags, recovery.FlagReanchored) {
		t.Fatalf("reanchored flag missing: %v", d.Flags)
	}
}

func TestGateRejectionKeepsFlags(t *testing.T) {
	g := NewGate(config.Default())
	in := cleanInput()
	in.OnsetConfidence = recovery.ConfidenceLow
	in.Features.R2[recovery.WindowPrimary] = 0.5
	in.Features.R2["0_120"] = 0.9 // keep best above the floor

	d := g.Evaluate(in)
	if d.Status != recovery.StatusRejected {
		t.Fatalf("expected rejection, got %s", d.Status)
	}
	if !hasFlag(d.Flags, recovery.FlagOnsetDisagreement) {
		t.Fatalf("flags should survive rejection: %v", d.Flags)
	}
}

func TestResolvePrecedence(t *testing.T) {
	auto := Decision{Status: recovery.StatusRejected, RejectReason: recovery.RejectPrimaryLowR2}

	final, note := Resolve(auto, nil)
	if final != recovery.StatusRejected || note != "" {
		t.Fatalf("without override expected automated result, got %s %q", final, note)
	}

	ov := &recovery.QualityOverride{ForcedStatus: recovery.StatusPass, Reason: "sensor artifact"}
	final, note = Resolve(auto, ov)
	if final != recovery.StatusPass {
		t.Fatalf("override should win, got %s", final)
	}
	if note == "" {
		t.Fatal("override should carry a note")
	}
}

func hasFlag(flags []string, name string) bool {
	for _, f := range flags {
		if f == name {
			return true
		}
	}
	return false
}
