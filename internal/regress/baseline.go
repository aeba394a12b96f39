package regress

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/brockwebb/arnold-sub002/internal/recovery"
)

// #region baseline-types

// Baseline is a frozen snapshot of one session's extraction results, written
// as a JSON fixture. A later run compares against it to detect behavioral
// drift before a reprocess is treated as safe.
type Baseline struct {
	Description string             `json:"description,omitempty"`
	SessionID   string             `json:"session_id"`
	VersionTag  string             `json:"version_tag"`
	ConfigJSON  string             `json:"config_json,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	Intervals   []BaselineInterval `json:"intervals"`
}

// BaselineInterval holds the per-interval facts a regression check compares:
// identity, final label and reason, and the headline metrics.
type BaselineInterval struct {
	IntervalOrder int       `json:"interval_order"`
	StartTime     time.Time `json:"start_time"`
	DurationS     int       `json:"duration_s"`
	Status        string    `json:"status"`
	RejectReason  string    `json:"reject_reason,omitempty"`
	Flags         []string  `json:"flags,omitempty"`

	PeakHR    float64  `json:"peak_hr"`
	HRR60     *float64 `json:"hrr_60,omitempty"`
	R2Primary *float64 `json:"r2_primary,omitempty"`
	Tau       float64  `json:"tau"`
}

// #endregion baseline-types

// #region snapshot

// Snapshot builds a baseline from a run and its intervals.
func Snapshot(run recovery.AlgorithmRun, intervals []recovery.Interval) Baseline {
	b := Baseline{
		SessionID:  run.SessionID,
		VersionTag: run.VersionTag,
		ConfigJSON: run.ConfigJSON,
		CreatedAt:  run.CreatedAt,
	}
	for _, iv := range intervals {
		bi := BaselineInterval{
			IntervalOrder: iv.IntervalOrder,
			StartTime:     iv.StartTime,
			DurationS:     iv.DurationS,
			Status:        string(iv.QualityStatus),
			RejectReason:  iv.AutoRejectReason,
			Flags:         iv.QualityFlags,
			PeakHR:        iv.PeakHR,
			Tau:           iv.Tau,
		}
		if v, ok := iv.HRRAbs[60]; ok {
			hrr := v
			bi.HRR60 = &hrr
		}
		if v, ok := iv.R2[recovery.WindowPrimary]; ok {
			r2 := v
			bi.R2Primary = &r2
		}
		b.Intervals = append(b.Intervals, bi)
	}
	return b
}

// #endregion snapshot

// #region io

// Save writes a baseline as indented JSON.
func Save(b Baseline, path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal baseline: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write baseline %s: %w", path, err)
	}
	return nil
}

// Load reads and parses a baseline fixture file.
func Load(path string) (Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Baseline{}, fmt.Errorf("read baseline %s: %w", path, err)
	}
	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return Baseline{}, fmt.Errorf("parse baseline %s: %w", path, err)
	}
	return b, nil
}

// #endregion io
