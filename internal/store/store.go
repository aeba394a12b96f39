package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/brockwebb/arnold-sub002/internal/recovery"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id   TEXT PRIMARY KEY,
	sport_type   TEXT NOT NULL,
	start_time   TEXT NOT NULL,
	resting_hr   REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS hr_samples (
	session_id   TEXT NOT NULL,
	ts           TEXT NOT NULL,
	hr           REAL NOT NULL,
	PRIMARY KEY (session_id, ts),
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE TABLE IF NOT EXISTS algorithm_runs (
	run_id       TEXT PRIMARY KEY,
	version_tag  TEXT NOT NULL,
	config_json  TEXT,
	session_id   TEXT NOT NULL,
	n_pass       INTEGER NOT NULL,
	n_flagged    INTEGER NOT NULL,
	n_rejected   INTEGER NOT NULL,
	created_at   TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE TABLE IF NOT EXISTS intervals (
	interval_id        TEXT PRIMARY KEY,
	session_id         TEXT NOT NULL,
	interval_order     INTEGER NOT NULL,
	start_time         TEXT NOT NULL,
	end_time           TEXT NOT NULL,
	duration_s         INTEGER NOT NULL,
	peak_hr            REAL NOT NULL,
	onset_delay_s      INTEGER NOT NULL,
	onset_confidence   TEXT NOT NULL,
	hr_at_json         TEXT NOT NULL,
	hrr_abs_json       TEXT NOT NULL,
	r2_json            TEXT NOT NULL,
	tau                REAL NOT NULL,
	tau_clipped        INTEGER NOT NULL,
	late_slope         REAL NOT NULL,
	quality_status     TEXT NOT NULL,
	auto_status        TEXT NOT NULL,
	auto_reject_reason TEXT,
	quality_flags_json TEXT NOT NULL,
	algo_run_id        TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id),
	FOREIGN KEY (algo_run_id) REFERENCES algorithm_runs(run_id)
);

CREATE TABLE IF NOT EXISTS active_runs (
	session_id   TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id),
	FOREIGN KEY (run_id) REFERENCES algorithm_runs(run_id)
);

CREATE TABLE IF NOT EXISTS peak_adjustments (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id     TEXT NOT NULL,
	interval_order INTEGER NOT NULL,
	shift_seconds  INTEGER NOT NULL,
	reason         TEXT,
	created_at     TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE TABLE IF NOT EXISTS quality_overrides (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id     TEXT NOT NULL,
	interval_order INTEGER NOT NULL,
	forced_status  TEXT NOT NULL,
	reason         TEXT,
	notes          TEXT,
	created_at     TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE TABLE IF NOT EXISTS human_judgments (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id     TEXT NOT NULL,
	interval_order INTEGER NOT NULL,
	nominal_start  TEXT NOT NULL,
	judgment       TEXT NOT NULL,
	notes          TEXT,
	created_at     TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);
`

// #endregion schema

// #region store-struct

// Store persists sessions, samples, extracted intervals and the human review
// records in SQLite. Human records live in their own tables keyed by the
// natural (session, order) locator so they survive reprocessing; intervals are
// replaced wholesale per run and the active_runs pointer repointed.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region sessions

// ImportSession upserts a session header and its samples in one transaction.
func (s *Store) ImportSession(ctx context.Context, session recovery.Session, samples []recovery.Sample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (session_id, sport_type, start_time, resting_hr)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   sport_type = excluded.sport_type,
		   start_time = excluded.start_time,
		   resting_hr = excluded.resting_hr`,
		session.ID, session.SportType, session.StartTime.Format(time.RFC3339Nano), session.RestingHR,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM hr_samples WHERE session_id = ?`, session.ID); err != nil {
		return fmt.Errorf("clear samples: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO hr_samples (session_id, ts, hr) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare samples: %w", err)
	}
	defer stmt.Close()
	for _, sm := range samples {
		if _, err := stmt.ExecContext(ctx, session.ID, sm.Timestamp.Format(time.RFC3339Nano), sm.HR); err != nil {
			return fmt.Errorf("insert sample: %w", err)
		}
	}

	return tx.Commit()
}

// GetSession reads one session header.
func (s *Store) GetSession(ctx context.Context, id string) (recovery.Session, error) {
	var sess recovery.Session
	var startStr string
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, sport_type, start_time, resting_hr FROM sessions WHERE session_id = ?`, id,
	).Scan(&sess.ID, &sess.SportType, &startStr, &sess.RestingHR)
	if err != nil {
		return recovery.Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	sess.StartTime, _ = time.Parse(time.RFC3339Nano, startStr)
	return sess, nil
}

// GetSamples reads a session's samples in timestamp order.
func (s *Store) GetSamples(ctx context.Context, id string) ([]recovery.Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, hr FROM hr_samples WHERE session_id = ? ORDER BY ts`, id)
	if err != nil {
		return nil, fmt.Errorf("get samples %s: %w", id, err)
	}
	defer rows.Close()

	var samples []recovery.Sample
	for rows.Next() {
		var tsStr string
		sm := recovery.Sample{SessionID: id}
		if err := rows.Scan(&tsStr, &sm.HR); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		sm.Timestamp, _ = time.Parse(time.RFC3339Nano, tsStr)
		samples = append(samples, sm)
	}
	return samples, rows.Err()
}

// ListSessionIDs returns all session IDs ordered by start time.
func (s *Store) ListSessionIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id FROM sessions ORDER BY start_time`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// #endregion sessions

// #region runs

// PersistRun inserts a run with its intervals and repoints the session's
// active run, all in one transaction. Prior runs and their intervals stay in
// place for provenance; readers follow the active pointer.
func (s *Store) PersistRun(ctx context.Context, run recovery.AlgorithmRun, intervals []recovery.Interval) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO algorithm_runs (run_id, version_tag, config_json, session_id, n_pass, n_flagged, n_rejected, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.VersionTag, nullable(run.ConfigJSON), run.SessionID,
		run.Counts.Pass, run.Counts.Flagged, run.Counts.Rejected,
		run.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO intervals (
			interval_id, session_id, interval_order,
			start_time, end_time, duration_s,
			peak_hr, onset_delay_s, onset_confidence,
			hr_at_json, hrr_abs_json, r2_json,
			tau, tau_clipped, late_slope,
			quality_status, auto_status, auto_reject_reason, quality_flags_json,
			algo_run_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare intervals: %w", err)
	}
	defer stmt.Close()

	for _, iv := range intervals {
		hrAt, err := json.Marshal(iv.HRAt)
		if err != nil {
			return fmt.Errorf("marshal hr_at: %w", err)
		}
		hrrAbs, err := json.Marshal(iv.HRRAbs)
		if err != nil {
			return fmt.Errorf("marshal hrr_abs: %w", err)
		}
		r2, err := json.Marshal(iv.R2)
		if err != nil {
			return fmt.Errorf("marshal r2: %w", err)
		}
		flags, err := json.Marshal(iv.QualityFlags)
		if err != nil {
			return fmt.Errorf("marshal flags: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			iv.ID, iv.SessionID, iv.IntervalOrder,
			iv.StartTime.Format(time.RFC3339Nano), iv.EndTime.Format(time.RFC3339Nano), iv.DurationS,
			iv.PeakHR, iv.OnsetDelayS, string(iv.OnsetConfidence),
			string(hrAt), string(hrrAbs), string(r2),
			iv.Tau, boolInt(iv.TauClipped), iv.LateSlope,
			string(iv.QualityStatus), string(iv.AutoStatus), nullable(iv.AutoRejectReason), string(flags),
			iv.AlgoRunID,
		)
		if err != nil {
			return fmt.Errorf("insert interval %d: %w", iv.IntervalOrder, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO active_runs (session_id, run_id) VALUES (?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET run_id = excluded.run_id`,
		run.SessionID, run.ID,
	)
	if err != nil {
		return fmt.Errorf("set active run: %w", err)
	}

	return tx.Commit()
}

// GetActiveRun returns the session's active run, or a not-found error when the
// session has never been processed.
func (s *Store) GetActiveRun(ctx context.Context, sessionID string) (recovery.AlgorithmRun, error) {
	var run recovery.AlgorithmRun
	var configJSON sql.NullString
	var createdStr string
	err := s.db.QueryRowContext(ctx,
		`SELECT r.run_id, r.version_tag, r.config_json, r.session_id, r.n_pass, r.n_flagged, r.n_rejected, r.created_at
		 FROM active_runs a JOIN algorithm_runs r ON r.run_id = a.run_id
		 WHERE a.session_id = ?`, sessionID,
	).Scan(&run.ID, &run.VersionTag, &configJSON, &run.SessionID,
		&run.Counts.Pass, &run.Counts.Flagged, &run.Counts.Rejected, &createdStr)
	if err != nil {
		return recovery.AlgorithmRun{}, fmt.Errorf("get active run %s: %w", sessionID, err)
	}
	if configJSON.Valid {
		run.ConfigJSON = configJSON.String
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return run, nil
}

// GetRun returns one run by id, active or not. Prior runs stay queryable for
// provenance and before/after comparison.
func (s *Store) GetRun(ctx context.Context, runID string) (recovery.AlgorithmRun, error) {
	var run recovery.AlgorithmRun
	var configJSON sql.NullString
	var createdStr string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, version_tag, config_json, session_id, n_pass, n_flagged, n_rejected, created_at
		 FROM algorithm_runs WHERE run_id = ?`, runID,
	).Scan(&run.ID, &run.VersionTag, &configJSON, &run.SessionID,
		&run.Counts.Pass, &run.Counts.Flagged, &run.Counts.Rejected, &createdStr)
	if err != nil {
		return recovery.AlgorithmRun{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	if configJSON.Valid {
		run.ConfigJSON = configJSON.String
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return run, nil
}

// HasActiveRun reports whether the session already has a persisted run.
func (s *Store) HasActiveRun(ctx context.Context, sessionID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM active_runs WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check active run: %w", err)
	}
	return n > 0, nil
}

// GetActiveIntervals returns the session's intervals from its active run, in
// interval order.
func (s *Store) GetActiveIntervals(ctx context.Context, sessionID string) ([]recovery.Interval, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT i.interval_id, i.session_id, i.interval_order,
		        i.start_time, i.end_time, i.duration_s,
		        i.peak_hr, i.onset_delay_s, i.onset_confidence,
		        i.hr_at_json, i.hrr_abs_json, i.r2_json,
		        i.tau, i.tau_clipped, i.late_slope,
		        i.quality_status, i.auto_status, i.auto_reject_reason, i.quality_flags_json,
		        i.algo_run_id
		 FROM intervals i JOIN active_runs a
		   ON a.session_id = i.session_id AND a.run_id = i.algo_run_id
		 WHERE i.session_id = ?
		 ORDER BY i.interval_order`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get intervals %s: %w", sessionID, err)
	}
	defer rows.Close()

	var intervals []recovery.Interval
	for rows.Next() {
		iv, err := scanInterval(rows)
		if err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}
	return intervals, rows.Err()
}

// GetRunIntervals returns the intervals a specific run produced, in interval
// order, regardless of which run is active.
func (s *Store) GetRunIntervals(ctx context.Context, runID string) ([]recovery.Interval, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT interval_id, session_id, interval_order,
		        start_time, end_time, duration_s,
		        peak_hr, onset_delay_s, onset_confidence,
		        hr_at_json, hrr_abs_json, r2_json,
		        tau, tau_clipped, late_slope,
		        quality_status, auto_status, auto_reject_reason, quality_flags_json,
		        algo_run_id
		 FROM intervals WHERE algo_run_id = ?
		 ORDER BY interval_order`, runID)
	if err != nil {
		return nil, fmt.Errorf("get run intervals %s: %w", runID, err)
	}
	defer rows.Close()

	var intervals []recovery.Interval
	for rows.Next() {
		iv, err := scanInterval(rows)
		if err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}
	return intervals, rows.Err()
}

func scanInterval(rows *sql.Rows) (recovery.Interval, error) {
	var iv recovery.Interval
	var startStr, endStr, confStr, statusStr, autoStr string
	var hrAtJSON, hrrAbsJSON, r2JSON, flagsJSON string
	var reasonNull sql.NullString
	var clipped int

	err := rows.Scan(&iv.ID, &iv.SessionID, &iv.IntervalOrder,
		&startStr, &endStr, &iv.DurationS,
		&iv.PeakHR, &iv.OnsetDelayS, &confStr,
		&hrAtJSON, &hrrAbsJSON, &r2JSON,
		&iv.Tau, &clipped, &iv.LateSlope,
		&statusStr, &autoStr, &reasonNull, &flagsJSON,
		&iv.AlgoRunID)
	if err != nil {
		return recovery.Interval{}, fmt.Errorf("scan interval: %w", err)
	}

	iv.StartTime, _ = time.Parse(time.RFC3339Nano, startStr)
	iv.EndTime, _ = time.Parse(time.RFC3339Nano, endStr)
	iv.OnsetConfidence = recovery.Confidence(confStr)
	iv.QualityStatus = recovery.Status(statusStr)
	iv.AutoStatus = recovery.Status(autoStr)
	if reasonNull.Valid {
		iv.AutoRejectReason = reasonNull.String
	}
	iv.TauClipped = clipped != 0

	if err := json.Unmarshal([]byte(hrAtJSON), &iv.HRAt); err != nil {
		return recovery.Interval{}, fmt.Errorf("unmarshal hr_at: %w", err)
	}
	if err := json.Unmarshal([]byte(hrrAbsJSON), &iv.HRRAbs); err != nil {
		return recovery.Interval{}, fmt.Errorf("unmarshal hrr_abs: %w", err)
	}
	if err := json.Unmarshal([]byte(r2JSON), &iv.R2); err != nil {
		return recovery.Interval{}, fmt.Errorf("unmarshal r2: %w", err)
	}
	if err := json.Unmarshal([]byte(flagsJSON), &iv.QualityFlags); err != nil {
		return recovery.Interval{}, fmt.Errorf("unmarshal flags: %w", err)
	}
	return iv, nil
}

// #endregion runs

// #region human-records

// AddAdjustment records a human peak adjustment; it takes effect on the next
// reprocess of the session.
func (s *Store) AddAdjustment(ctx context.Context, adj recovery.PeakAdjustment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO peak_adjustments (session_id, interval_order, shift_seconds, reason, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		adj.SessionID, adj.IntervalOrder, adj.ShiftSeconds, nullable(adj.Reason),
		adj.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert adjustment: %w", err)
	}
	return nil
}

// ListAdjustments returns a session's peak adjustments in creation order.
// Later adjustments for the same interval win at application time.
func (s *Store) ListAdjustments(ctx context.Context, sessionID string) ([]recovery.PeakAdjustment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT interval_order, shift_seconds, reason, created_at
		 FROM peak_adjustments WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list adjustments %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []recovery.PeakAdjustment
	for rows.Next() {
		adj := recovery.PeakAdjustment{SessionID: sessionID}
		var reasonNull sql.NullString
		var createdStr string
		if err := rows.Scan(&adj.IntervalOrder, &adj.ShiftSeconds, &reasonNull, &createdStr); err != nil {
			return nil, fmt.Errorf("scan adjustment: %w", err)
		}
		if reasonNull.Valid {
			adj.Reason = reasonNull.String
		}
		adj.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, adj)
	}
	return out, rows.Err()
}

// AddOverride records a human quality override.
func (s *Store) AddOverride(ctx context.Context, ov recovery.QualityOverride) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quality_overrides (session_id, interval_order, forced_status, reason, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ov.SessionID, ov.IntervalOrder, string(ov.ForcedStatus), nullable(ov.Reason), nullable(ov.Notes),
		ov.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert override: %w", err)
	}
	return nil
}

// ListOverrides returns a session's overrides in creation order. The pipeline
// applies the last one recorded per interval.
func (s *Store) ListOverrides(ctx context.Context, sessionID string) ([]recovery.QualityOverride, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT interval_order, forced_status, reason, notes, created_at
		 FROM quality_overrides WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list overrides %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []recovery.QualityOverride
	for rows.Next() {
		ov := recovery.QualityOverride{SessionID: sessionID}
		var statusStr string
		var reasonNull, notesNull sql.NullString
		var createdStr string
		if err := rows.Scan(&ov.IntervalOrder, &statusStr, &reasonNull, &notesNull, &createdStr); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		ov.ForcedStatus = recovery.Status(statusStr)
		if reasonNull.Valid {
			ov.Reason = reasonNull.String
		}
		if notesNull.Valid {
			ov.Notes = notesNull.String
		}
		ov.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, ov)
	}
	return out, rows.Err()
}

// AddJudgment records an analyst verdict on an interval.
func (s *Store) AddJudgment(ctx context.Context, j recovery.HumanJudgment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO human_judgments (session_id, interval_order, nominal_start, judgment, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		j.SessionID, j.IntervalOrder, j.NominalStart.Format(time.RFC3339Nano),
		j.Judgment, nullable(j.Notes), j.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert judgment: %w", err)
	}
	return nil
}

// ListJudgments returns judgments for a session, or for all sessions when
// sessionID is empty.
func (s *Store) ListJudgments(ctx context.Context, sessionID string) ([]recovery.HumanJudgment, error) {
	query := `SELECT session_id, interval_order, nominal_start, judgment, notes, created_at
	          FROM human_judgments`
	args := []interface{}{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list judgments: %w", err)
	}
	defer rows.Close()

	var out []recovery.HumanJudgment
	for rows.Next() {
		var j recovery.HumanJudgment
		var startStr, createdStr string
		var notesNull sql.NullString
		if err := rows.Scan(&j.SessionID, &j.IntervalOrder, &startStr, &j.Judgment, &notesNull, &createdStr); err != nil {
			return nil, fmt.Errorf("scan judgment: %w", err)
		}
		j.NominalStart, _ = time.Parse(time.RFC3339Nano, startStr)
		if notesNull.Valid {
			j.Notes = notesNull.String
		}
		j.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, j)
	}
	return out, rows.Err()
}

// #endregion human-records

// #region helpers

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
