package condition

import (
	"math/rand"
	"testing"
	"time"

	"github.com/brockwebb/arnold-sub002/internal/config"
	"github.com/brockwebb/arnold-sub002/internal/recovery"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func sampleAt(sec int, hr float64) recovery.Sample {
	return recovery.Sample{
		SessionID: "s1",
		Timestamp: t0.Add(time.Duration(sec) * time.Second),
		HR:        hr,
	}
}

func TestConditionInterpolatesGaps(t *testing.T) {
	// Two samples ten seconds apart; the gap fills linearly.
	samples := []recovery.Sample{
		sampleAt(0, 100),
		sampleAt(10, 110),
	}

	s, err := Condition(samples, config.Default())
	if err != nil {
		t.Fatalf("Condition: %v", err)
	}
	if s.Len() != 11 {
		t.Fatalf("expected 11 seconds, got %d", s.Len())
	}
	// Centered median and average leave the interior of a linear ramp alone.
	if got := s.At(5); got < 104.9 || got > 105.1 {
		t.Fatalf("expected ~105 at second 5, got %.2f", got)
	}
	for i := 1; i < s.Len(); i++ {
		if s.At(i) < s.At(i-1) {
			t.Fatalf("ramp not monotone at %d: %.2f < %.2f", i, s.At(i), s.At(i-1))
		}
	}
}

func TestConditionRemovesSpike(t *testing.T) {
	samples := make([]recovery.Sample, 0, 61)
	for i := 0; i <= 60; i++ {
		hr := 100.0
		if i == 30 {
			hr = 180 // single-sample sensor glitch
		}
		samples = append(samples, sampleAt(i, hr))
	}

	s, err := Condition(samples, config.Default())
	if err != nil {
		t.Fatalf("Condition: %v", err)
	}
	for i := 0; i < s.Len(); i++ {
		if s.At(i) > 105 {
			t.Fatalf("spike survived conditioning: %.1f at second %d", s.At(i), i)
		}
	}
}

func TestConditionSortsInput(t *testing.T) {
	ordered := make([]recovery.Sample, 0, 31)
	for i := 0; i <= 30; i++ {
		ordered = append(ordered, sampleAt(i, 100+float64(i)))
	}
	shuffled := make([]recovery.Sample, len(ordered))
	copy(shuffled, ordered)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	a, err := Condition(ordered, config.Default())
	if err != nil {
		t.Fatalf("Condition ordered: %v", err)
	}
	b, err := Condition(shuffled, config.Default())
	if err != nil {
		t.Fatalf("Condition shuffled: %v", err)
	}
	if a.Len() != b.Len() {
		t.Fatalf("length mismatch: %d vs %d", a.Len(), b.Len())
	}
	for i := 0; i < a.Len(); i++ {
		if a.At(i) != b.At(i) {
			t.Fatalf("mismatch at %d: %.2f vs %.2f", i, a.At(i), b.At(i))
		}
	}
}

func TestConditionRejectsTooFewSamples(t *testing.T) {
	if _, err := Condition([]recovery.Sample{sampleAt(0, 100)}, config.Default()); err == nil {
		t.Fatal("expected error for single sample")
	}
}

func TestSecondOfClamps(t *testing.T) {
	s := &Series{Start: t0, HR: make([]float64, 100)}
	if got := s.SecondOf(t0.Add(-5 * time.Second)); got != 0 {
		t.Fatalf("expected clamp to 0, got %d", got)
	}
	if got := s.SecondOf(t0.Add(500 * time.Second)); got != 99 {
		t.Fatalf("expected clamp to 99, got %d", got)
	}
	if got := s.SecondOf(t0.Add(42 * time.Second)); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}
