package gate

import (
	"github.com/brockwebb/arnold-sub002/internal/features"
	"github.com/brockwebb/arnold-sub002/internal/recovery"
)

// #region input

// Input is everything the quality gate reads for one interval. The gate only
// reads the feature table; it never triggers computation.
type Input struct {
	DurationS       int
	Truncated       bool
	Features        features.Table
	OnsetConfidence recovery.Confidence
	PeakHR          float64
	RestingHR       float64
	// Reanchored means the measurement start moved off the detected peak,
	// either by a forward re-anchor or by an onset shift.
	Reanchored bool
}

// #endregion input

// #region decision

// Decision is the automated gate outcome. Rejection is a label; the caller
// keeps every computed diagnostic regardless.
type Decision struct {
	Status       recovery.Status
	RejectReason string
	Flags        []string
}

// #endregion decision
