package condition

import (
	"fmt"
	"sort"
	"time"

	"github.com/brockwebb/arnold-sub002/internal/config"
	"github.com/brockwebb/arnold-sub002/internal/recovery"
)

// #region series

// Series is a dense second-by-second HR series. After conditioning there are
// no missing seconds in range, so downstream stages never special-case gaps.
type Series struct {
	Start time.Time
	HR    []float64
}

// Len returns the series length in seconds.
func (s *Series) Len() int { return len(s.HR) }

// At returns the HR value at the given second offset.
func (s *Series) At(sec int) float64 { return s.HR[sec] }

// TimeAt converts a second offset back into a wall-clock timestamp.
func (s *Series) TimeAt(sec int) time.Time {
	return s.Start.Add(time.Duration(sec) * time.Second)
}

// SecondOf converts a timestamp into a second offset, clamped to range.
func (s *Series) SecondOf(t time.Time) int {
	sec := int(t.Sub(s.Start) / time.Second)
	if sec < 0 {
		return 0
	}
	if sec >= len(s.HR) {
		return len(s.HR) - 1
	}
	return sec
}

// #endregion series

// #region condition

// Condition turns raw samples into a dense smoothed series: linear
// interpolation across gaps, then a short median filter, then a moving
// average. Pure transform, no side effects.
func Condition(samples []recovery.Sample, cfg config.Config) (*Series, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("condition: need at least 2 samples, got %d", len(samples))
	}

	ordered := make([]recovery.Sample, len(samples))
	copy(ordered, samples)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	dense := resample(ordered)
	dense = medianFilter(dense, cfg.MedianWindowS)
	dense = movingAverage(dense, cfg.SmoothWindowS)

	return &Series{
		Start: ordered[0].Timestamp.Truncate(time.Second),
		HR:    dense,
	}, nil
}

// resample produces one value per second from first to last sample,
// linearly interpolating across gaps.
func resample(samples []recovery.Sample) []float64 {
	start := samples[0].Timestamp.Truncate(time.Second)
	end := samples[len(samples)-1].Timestamp.Truncate(time.Second)
	n := int(end.Sub(start)/time.Second) + 1

	out := make([]float64, n)
	si := 0
	for sec := 0; sec < n; sec++ {
		t := start.Add(time.Duration(sec) * time.Second)
		for si < len(samples)-1 && !samples[si+1].Timestamp.After(t) {
			si++
		}
		cur := samples[si]
		if si == len(samples)-1 || !cur.Timestamp.Before(t) {
			out[sec] = cur.HR
			continue
		}
		next := samples[si+1]
		span := next.Timestamp.Sub(cur.Timestamp).Seconds()
		if span <= 0 {
			out[sec] = cur.HR
			continue
		}
		frac := t.Sub(cur.Timestamp).Seconds() / span
		out[sec] = cur.HR + frac*(next.HR-cur.HR)
	}
	return out
}

// #endregion condition

// #region filters

// medianFilter applies a centered running median. Knocks out single-sample
// sensor spikes without moving edges the way an average would.
func medianFilter(data []float64, window int) []float64 {
	if window < 3 || len(data) < window {
		return data
	}
	half := window / 2
	out := make([]float64, len(data))
	buf := make([]float64, 0, window)
	for i := range data {
		lo, hi := i-half, i+half
		if lo < 0 {
			lo = 0
		}
		if hi >= len(data) {
			hi = len(data) - 1
		}
		buf = buf[:0]
		buf = append(buf, data[lo:hi+1]...)
		sort.Float64s(buf)
		out[i] = buf[len(buf)/2]
	}
	return out
}

// movingAverage applies a centered moving average with shrinking edges.
func movingAverage(data []float64, window int) []float64 {
	if window < 2 || len(data) < window {
		return data
	}
	half := window / 2
	out := make([]float64, len(data))
	for i := range data {
		lo, hi := i-half, i+half
		if lo < 0 {
			lo = 0
		}
		if hi >= len(data) {
			hi = len(data) - 1
		}
		var sum float64
		for j := lo; j <= hi; j++ {
			sum += data[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}

// #endregion filters
