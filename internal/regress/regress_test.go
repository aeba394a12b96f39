package regress

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brockwebb/arnold-sub002/internal/recovery"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func fixtureRun() recovery.AlgorithmRun {
	return recovery.AlgorithmRun{
		ID:         "run-1",
		VersionTag: "hrr-v1",
		ConfigJSON: `{"workers":4}`,
		SessionID:  "s1",
		Counts:     recovery.RunCounts{Pass: 1, Rejected: 1},
		CreatedAt:  t0,
	}
}

func fixtureIntervals() []recovery.Interval {
	return []recovery.Interval{
		{
			SessionID:     "s1",
			IntervalOrder: 0,
			StartTime:     t0.Add(200 * time.Second),
			EndTime:       t0.Add(500 * time.Second),
			DurationS:     300,
			PeakHR:        171.2,
			HRRAbs:        map[int]float64{60: 41.5},
			R2:            map[string]float64{recovery.WindowPrimary: 0.957},
			Tau:           38.2,
			QualityStatus: recovery.StatusPass,
		},
		{
			SessionID:        "s1",
			IntervalOrder:    1,
			StartTime:        t0.Add(900 * time.Second),
			EndTime:          t0.Add(975 * time.Second),
			DurationS:        75,
			PeakHR:           168.4,
			HRRAbs:           map[int]float64{60: 30.1},
			R2:               map[string]float64{recovery.WindowPrimary: 0.91},
			Tau:              44.0,
			QualityStatus:    recovery.StatusRejected,
			AutoRejectReason: recovery.RejectActivityResumed,
		},
	}
}

func TestCompareCleanAgainstOwnSnapshot(t *testing.T) {
	intervals := fixtureIntervals()
	base := Snapshot(fixtureRun(), intervals)

	rep := Compare(base, intervals)
	if !rep.Clean() {
		t.Fatalf("self-comparison should be clean:\n%s", rep.Render())
	}
	if len(rep.Rows) == 0 {
		t.Fatal("clean report should still list its checks")
	}
}

func TestCompareCountsDivergences(t *testing.T) {
	intervals := fixtureIntervals()
	base := Snapshot(fixtureRun(), intervals)

	changed := fixtureIntervals()
	changed[0].QualityStatus = recovery.StatusFlagged // status diff
	changed[0].HRRAbs[60] = 39.0                      // outside the 0.5 bpm band
	changed[1].DurationS = 76                         // inside the 2 s band

	rep := Compare(base, changed)
	if rep.Clean() {
		t.Fatal("expected divergences")
	}
	if rep.Divergences != 2 {
		t.Fatalf("expected 2 divergences, got %d:\n%s", rep.Divergences, rep.Render())
	}

	byField := make(map[string]bool)
	for _, row := range rep.Rows {
		if !row.Match {
			byField[row.Field] = true
		}
	}
	if !byField["status"] || !byField["hrr_60"] {
		t.Fatalf("wrong fields flagged: %v", byField)
	}
}

func TestComparePresence(t *testing.T) {
	intervals := fixtureIntervals()
	base := Snapshot(fixtureRun(), intervals)

	// Drop one interval and add an unexpected one.
	mutated := []recovery.Interval{intervals[0]}
	extra := intervals[1]
	extra.IntervalOrder = 5
	mutated = append(mutated, extra)

	rep := Compare(base, mutated)
	missing, surplus := false, false
	for _, row := range rep.Rows {
		if row.Field != "presence" || row.Match {
			continue
		}
		switch {
		case row.IntervalOrder == 1 && row.Got == "missing":
			missing = true
		case row.IntervalOrder == 5 && row.Got == "present":
			surplus = true
		}
	}
	if !missing || !surplus {
		t.Fatalf("presence rows wrong:\n%s", rep.Render())
	}
}

func TestCheckJudgments(t *testing.T) {
	intervals := fixtureIntervals()
	confirmed := recovery.HumanJudgment{
		SessionID:     "s1",
		IntervalOrder: 0,
		NominalStart:  t0.Add(203 * time.Second), // within drift tolerance
		Judgment:      recovery.JudgmentConfirmed,
	}

	var rep Report
	CheckJudgments(&rep, []recovery.HumanJudgment{confirmed}, intervals)
	if len(rep.JudgmentRegressions) != 0 {
		t.Fatalf("confirmed passing interval should not regress: %v", rep.JudgmentRegressions)
	}

	// The confirmed interval is now rejected.
	rejected := fixtureIntervals()
	rejected[0].QualityStatus = recovery.StatusRejected
	rejected[0].AutoRejectReason = recovery.RejectPoorFitQuality
	rep = Report{}
	CheckJudgments(&rep, []recovery.HumanJudgment{confirmed}, rejected)
	if len(rep.JudgmentRegressions) != 1 {
		t.Fatalf("expected 1 regression, got %v", rep.JudgmentRegressions)
	}
	if !strings.Contains(rep.JudgmentRegressions[0], "now rejected") {
		t.Fatalf("unexpected regression text: %s", rep.JudgmentRegressions[0])
	}

	// The interval drifted too far from the judged start.
	drifted := fixtureIntervals()
	drifted[0].StartTime = t0.Add(260 * time.Second)
	rep = Report{}
	CheckJudgments(&rep, []recovery.HumanJudgment{confirmed}, drifted)
	if len(rep.JudgmentRegressions) != 1 || !strings.Contains(rep.JudgmentRegressions[0], "no longer found") {
		t.Fatalf("expected a not-found regression, got %v", rep.JudgmentRegressions)
	}

	// Non-confirmed judgments are not oracles.
	fp := confirmed
	fp.Judgment = recovery.JudgmentFalsePositive
	rep = Report{}
	CheckJudgments(&rep, []recovery.HumanJudgment{fp}, rejected)
	if len(rep.JudgmentRegressions) != 0 {
		t.Fatalf("false_positive should be ignored: %v", rep.JudgmentRegressions)
	}
}

func TestBaselineSaveLoadRoundtrip(t *testing.T) {
	base := Snapshot(fixtureRun(), fixtureIntervals())
	base.Description = "pre-refactor reference"
	path := filepath.Join(t.TempDir(), "baseline.json")

	if err := Save(base, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.SessionID != base.SessionID || loaded.VersionTag != base.VersionTag {
		t.Fatalf("header drifted: %+v", loaded)
	}
	if loaded.Description != base.Description {
		t.Fatalf("description lost: %q", loaded.Description)
	}
	if len(loaded.Intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(loaded.Intervals))
	}
	if loaded.Intervals[1].RejectReason != recovery.RejectActivityResumed {
		t.Fatalf("reject reason lost: %q", loaded.Intervals[1].RejectReason)
	}
	if loaded.Intervals[0].HRR60 == nil || *loaded.Intervals[0].HRR60 != 41.5 {
		t.Fatalf("hrr_60 pointer lost: %v", loaded.Intervals[0].HRR60)
	}

	rep := Compare(loaded, fixtureIntervals())
	if !rep.Clean() {
		t.Fatalf("loaded baseline should still compare clean:\n%s", rep.Render())
	}
}
