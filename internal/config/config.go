package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// #region config

// Config is the immutable per-run configuration. Every field has a documented
// default; a YAML file only needs the keys it wants to change.
type Config struct {
	// Signal conditioning.
	MedianWindowS  int `yaml:"median_window_s"`  // median filter width, seconds
	SmoothWindowS  int `yaml:"smooth_window_s"`  // moving-average width, seconds
	MinSessionSecs int `yaml:"min_session_secs"` // sessions shorter than this are skipped

	// Peak detection.
	ProminenceMin    float64 `yaml:"prominence_min"`    // bpm above surrounding valley
	DistanceMin      int     `yaml:"distance_min"`      // min seconds between peaks
	BackwardLookback int     `yaml:"backward_lookback"` // true-peak search window, seconds
	BackwardMargin   float64 `yaml:"backward_margin"`   // bpm above detected peak to relocate
	ReanchorMaxShift int     `yaml:"reanchor_max_shift"` // forward re-anchor search bound, seconds

	// Interval extension.
	CapDurationS      int     `yaml:"cap_duration_s"`      // hard recovery cap
	RiseTolerance     float64 `yaml:"rise_tolerance"`      // bpm above running min before late stage
	LateRiseTolerance float64 `yaml:"late_rise_tolerance"` // looser flutter tolerance late in recovery
	LateStageAfterS   int     `yaml:"late_stage_after_s"`  // when the loose tolerance kicks in
	RisePersistenceS  int     `yaml:"rise_persistence_s"`  // sustained-rise window before terminating

	// Onset ensemble.
	OnsetLookaheadS  int `yaml:"onset_lookahead_s"`  // search span for the onset detectors
	OnsetAgreeTightS int `yaml:"onset_agree_tight_s"` // estimator distance for high confidence
	OnsetAgreeLooseS int `yaml:"onset_agree_loose_s"` // estimator distance for medium confidence

	// Fit and quality thresholds. Tuned against one operator's sensor data;
	// do not assume they generalize across sensors or populations.
	PrimaryR2Min float64 `yaml:"primary_r2_min"` // 0-60 hard reject
	EarlyR2Min   float64 `yaml:"early_r2_min"`   // 0-30 double-peak reject + re-anchor trigger
	BestR2Min    float64 `yaml:"best_r2_min"`    // best-of-any-window hard reject
	TauMaxS      float64 `yaml:"tau_max_s"`      // tau clip bound; a clipped tau is degenerate
	LateSlopeMax float64 `yaml:"late_slope_max"` // bpm/s late slope hard reject
	ReserveFloor float64 `yaml:"reserve_floor"`  // bpm peak-to-baseline soft-flag floor

	// Batch execution.
	Workers    int    `yaml:"workers"`
	VersionTag string `yaml:"version_tag"`
}

// #endregion config

// #region defaults

// Default returns the documented default configuration.
func Default() Config {
	return Config{
		MedianWindowS:  3,
		SmoothWindowS:  5,
		MinSessionSecs: 120,

		ProminenceMin:    12,
		DistanceMin:      90,
		BackwardLookback: 45,
		BackwardMargin:   3,
		ReanchorMaxShift: 45,

		CapDurationS:      300,
		RiseTolerance:     4,
		LateRiseTolerance: 8,
		LateStageAfterS:   240,
		RisePersistenceS:  5,

		OnsetLookaheadS:  30,
		OnsetAgreeTightS: 5,
		OnsetAgreeLooseS: 15,

		PrimaryR2Min: 0.80,
		EarlyR2Min:   0.55,
		BestR2Min:    0.70,
		TauMaxS:      600,
		LateSlopeMax: 0.15,
		ReserveFloor: 25,

		Workers:    4,
		VersionTag: "hrr-v1",
	}
}

// #endregion defaults

// #region load

// Load reads a YAML config file over the defaults. An empty path returns the
// defaults unchanged; missing keys keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.CapDurationS <= 0 {
		return fmt.Errorf("cap_duration_s must be positive, got %d", c.CapDurationS)
	}
	if c.ProminenceMin <= 0 {
		return fmt.Errorf("prominence_min must be positive, got %.1f", c.ProminenceMin)
	}
	if c.DistanceMin <= 0 {
		return fmt.Errorf("distance_min must be positive, got %d", c.DistanceMin)
	}
	if c.PrimaryR2Min < 0 || c.PrimaryR2Min > 1 {
		return fmt.Errorf("primary_r2_min %.2f out of [0,1]", c.PrimaryR2Min)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	return nil
}

// SnapshotJSON serializes the full effective configuration for the
// AlgorithmRun provenance record.
func (c Config) SnapshotJSON() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal config snapshot: %w", err)
	}
	return string(data), nil
}

// #endregion load
