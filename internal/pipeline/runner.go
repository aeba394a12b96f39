package pipeline

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brockwebb/arnold-sub002/internal/config"
	"github.com/brockwebb/arnold-sub002/internal/recovery"
)

// #region ports

// Provider supplies read-only session inputs. Samples and sessions are
// externally owned; the pipeline never writes through this interface.
type Provider interface {
	GetSession(ctx context.Context, id string) (recovery.Session, error)
	GetSamples(ctx context.Context, id string) ([]recovery.Sample, error)
	ListAdjustments(ctx context.Context, sessionID string) ([]recovery.PeakAdjustment, error)
	ListOverrides(ctx context.Context, sessionID string) ([]recovery.QualityOverride, error)
}

// Sink persists a completed run atomically. Nothing is written for a session
// whose run aborted.
type Sink interface {
	PersistRun(ctx context.Context, run recovery.AlgorithmRun, intervals []recovery.Interval) error
}

// #endregion ports

// #region runner

// Runner executes the pipeline over sessions and persists the results with
// run provenance.
type Runner struct {
	provider Provider
	sink     Sink
	config   config.Config

	DryRun bool
	Quiet  bool
}

// NewRunner wires a runner over a provider and sink.
func NewRunner(provider Provider, sink Sink, cfg config.Config) *Runner {
	return &Runner{provider: provider, sink: sink, config: cfg}
}

// RunSession processes one session end to end. All samples load up front, all
// writes batch at the end; no I/O happens mid-computation.
func (r *Runner) RunSession(ctx context.Context, sessionID string) (Result, error) {
	session, err := r.provider.GetSession(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	samples, err := r.provider.GetSamples(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("load samples %s: %w", sessionID, err)
	}
	adjustments, err := r.provider.ListAdjustments(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("load adjustments %s: %w", sessionID, err)
	}
	overrides, err := r.provider.ListOverrides(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("load overrides %s: %w", sessionID, err)
	}

	result, err := Extract(session, samples, adjustments, overrides, r.config)
	if err != nil {
		return Result{}, err
	}

	run := recovery.AlgorithmRun{
		ID:         uuid.New().String(),
		VersionTag: r.config.VersionTag,
		SessionID:  sessionID,
		Counts:     result.Counts,
		CreatedAt:  time.Now().UTC(),
	}
	if snap, err := r.config.SnapshotJSON(); err != nil {
		log.Printf("[PIPE] session %s: config snapshot failed, run stored without provenance: %v", sessionID, err)
	} else {
		run.ConfigJSON = snap
	}
	for i := range result.Intervals {
		result.Intervals[i].AlgoRunID = run.ID
	}

	if !r.Quiet {
		for _, iv := range result.Intervals {
			log.Printf("[PIPE] %s", intervalLine(iv))
		}
	}

	if r.DryRun {
		log.Printf("[PIPE] session %s: dry run, skipping persist (%d intervals)", sessionID, len(result.Intervals))
		return result, nil
	}
	if err := r.sink.PersistRun(ctx, run, result.Intervals); err != nil {
		return Result{}, fmt.Errorf("persist session %s: %w", sessionID, err)
	}
	return result, nil
}

// #endregion runner

// #region batch

// BatchSummary aggregates a multi-session run.
type BatchSummary struct {
	Sessions int
	Failed   int
	Counts   recovery.RunCounts
}

// RunBatch processes many sessions on a fixed worker pool. Sessions share no
// mutable state beyond the read-only config, so ordering between them does
// not matter. A failing session logs and is skipped; it never fails the
// batch or leaves partial interval state behind.
func (r *Runner) RunBatch(ctx context.Context, sessionIDs []string, workers int) BatchSummary {
	if workers < 1 {
		workers = 1
	}

	type outcome struct {
		counts recovery.RunCounts
		err    error
	}
	outcomes := make([]outcome, len(sessionIDs))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := r.RunSession(ctx, sessionIDs[i])
				outcomes[i] = outcome{counts: res.Counts, err: err}
			}
		}()
	}

	for i := range sessionIDs {
		select {
		case <-ctx.Done():
			// Stop handing out work; in-flight sessions finish on their own.
		case jobs <- i:
			continue
		}
		break
	}
	close(jobs)
	wg.Wait()

	var sum BatchSummary
	for i, out := range outcomes {
		if out.err != nil {
			log.Printf("[PIPE] session %s failed: %v", sessionIDs[i], out.err)
			sum.Failed++
			continue
		}
		sum.Sessions++
		sum.Counts.Pass += out.counts.Pass
		sum.Counts.Flagged += out.counts.Flagged
		sum.Counts.Rejected += out.counts.Rejected
	}
	log.Printf("[PIPE] batch done: %d sessions ok, %d failed, pass=%d flagged=%d rejected=%d",
		sum.Sessions, sum.Failed, sum.Counts.Pass, sum.Counts.Flagged, sum.Counts.Rejected)
	return sum
}

// #endregion batch

// #region logging

// intervalLine renders the one-line-per-interval log entry.
func intervalLine(iv recovery.Interval) string {
	var b strings.Builder
	fmt.Fprintf(&b, "session=%s order=%d dur=%ds peak=%.0f", iv.SessionID, iv.IntervalOrder, iv.DurationS, iv.PeakHR)
	if hrr, ok := iv.HRRAbs[60]; ok {
		fmt.Fprintf(&b, " hrr60=%.0f", hrr)
	}

	names := make([]string, 0, len(iv.R2))
	for name := range iv.R2 {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, " r2_%s=%.2f", name, iv.R2[name])
	}

	fmt.Fprintf(&b, " status=%s", iv.QualityStatus)
	if iv.AutoRejectReason != "" {
		fmt.Fprintf(&b, " reason=%s", iv.AutoRejectReason)
	}
	if len(iv.QualityFlags) > 0 {
		fmt.Fprintf(&b, " flags=%s", strings.Join(iv.QualityFlags, ","))
	}
	return b.String()
}

// #endregion logging
