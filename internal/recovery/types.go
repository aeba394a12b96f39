package recovery

import "time"

// #region samples

// Sample is one raw HR telemetry point. Samples are externally owned,
// nominally 1 Hz, ordered by timestamp, and may contain gaps.
type Sample struct {
	SessionID string
	Timestamp time.Time
	HR        float64
}

// Session is a read-only training session header. RestingHR is the supplied
// baseline used for reserve computations; acquiring it is out of scope.
type Session struct {
	ID        string
	SportType string
	StartTime time.Time
	RestingHR float64
}

// #endregion samples

// #region status

// Status is the final quality label of an interval.
type Status string

const (
	StatusPass     Status = "pass"
	StatusFlagged  Status = "flagged"
	StatusRejected Status = "rejected"
)

// Hard-reject reasons, in gate order. First match wins.
const (
	RejectInsufficientDuration = "insufficient_duration"
	RejectActivityResumed      = "activity_resumed"
	RejectNoValidWindows       = "no_valid_windows"
	RejectPoorFitQuality       = "poor_fit_quality"
	RejectPrimaryLowR2         = "primary_low_r2"
	RejectDoublePeak           = "double_peak"
	RejectOverlapDuplicate     = "overlap_duplicate"
)

// Soft flags. Flags mark an interval for review without rejecting it.
const (
	FlagOnsetDisagreement = "onset_disagreement"
	FlagLowSignal         = "low_signal"
	FlagLatePositiveSlope = "late_positive_slope"
	FlagReanchored        = "reanchored"
)

// Confidence tiers for the onset-detector ensemble.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// #endregion status

// #region windows

// Offsets are the fixed measurement offsets, in seconds from interval onset.
var Offsets = []int{30, 60, 90, 120, 180, 240, 300}

// Window names a sub-window of the interval for an exponential-fit R².
type Window struct {
	Name  string
	Start int // seconds from onset
	End   int
}

// Windows is the fixed fit-window menu. The 0-60 window is the primary gate
// window; 0-30 is the double-peak discriminator.
var Windows = []Window{
	{"0_30", 0, 30},
	{"0_60", 0, 60},
	{"30_60", 30, 60},
	{"15_45", 15, 45},
	{"30_90", 30, 90},
	{"0_120", 0, 120},
	{"0_180", 0, 180},
	{"0_240", 0, 240},
	{"0_300", 0, 300},
}

const (
	WindowPrimary = "0_60"
	WindowEarly   = "0_30"
)

// #endregion windows

// #region interval

// Interval is one extracted recovery interval with its full diagnostic
// payload. Produced fresh by each algorithm run and never mutated; rejection
// is a label, not data deletion.
type Interval struct {
	ID            string
	SessionID     string
	IntervalOrder int

	StartTime time.Time
	EndTime   time.Time
	DurationS int

	PeakHR          float64
	OnsetDelayS     int
	OnsetConfidence Confidence

	HRAt   map[int]float64    // offset seconds → HR, present only when covered
	HRRAbs map[int]float64    // offset seconds → peak - HR
	R2     map[string]float64 // window name → fit R², defined wherever ≥10 samples

	Tau        float64
	TauClipped bool
	LateSlope  float64 // bpm/s over the late window, for activity-resumed check

	QualityStatus    Status
	AutoStatus       Status // automated result, kept when an override wins
	AutoRejectReason string
	QualityFlags     []string

	AlgoRunID string
}

// HasFlag reports whether the interval carries the named soft flag.
func (iv *Interval) HasFlag(name string) bool {
	for _, f := range iv.QualityFlags {
		if f == name {
			return true
		}
	}
	return false
}

// #endregion interval

// #region human-records

// PeakAdjustment is a human-authored peak shift, applied by the Peak Locator
// on the next reprocess as an override of the automated search.
type PeakAdjustment struct {
	SessionID     string
	IntervalOrder int
	ShiftSeconds  int
	Reason        string
	CreatedAt     time.Time
}

// QualityOverride forces a final status. It always wins over the automated
// result but never erases it.
type QualityOverride struct {
	SessionID     string
	IntervalOrder int
	ForcedStatus  Status
	Reason        string
	Notes         string
	CreatedAt     time.Time
}

// Judgment values for HumanJudgment records.
const (
	JudgmentConfirmed     = "confirmed"
	JudgmentFalsePositive = "false_positive"
	JudgmentFalseNegative = "false_negative"
	JudgmentOverride      = "override"
)

// HumanJudgment records an analyst verdict on one interval. Keyed by the
// natural (session, order) locator plus nominal start so it survives
// reprocessing; doubles as the regression oracle for later algorithm versions.
type HumanJudgment struct {
	SessionID     string
	IntervalOrder int
	NominalStart  time.Time
	Judgment      string
	Notes         string
	CreatedAt     time.Time
}

// #endregion human-records

// #region run

// RunCounts aggregates final statuses for one session run.
type RunCounts struct {
	Pass     int
	Flagged  int
	Rejected int
}

// Total returns the number of intervals covered by the counts.
func (c RunCounts) Total() int { return c.Pass + c.Flagged + c.Rejected }

// AlgorithmRun binds a batch of persisted intervals to the exact version and
// configuration that produced them, for provenance and regression comparison.
type AlgorithmRun struct {
	ID         string
	VersionTag string
	ConfigJSON string
	SessionID  string
	Counts     RunCounts
	CreatedAt  time.Time
}

// #endregion run
