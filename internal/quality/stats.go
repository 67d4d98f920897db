package quality

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/wrightlab/chunkcast/internal/reporter"
)

// statEntry is one unit's completed search, captured for the run-end
// diagnostic report.
type statEntry struct {
	unitIndex int
	result    Result
	predicted *float64 // Tracker's prediction before this search ran, if any
}

// Stats accumulates per-unit QualitySearch diagnostics — probe-round
// counts, the chosen-quantizer distribution, and Tracker prediction
// accuracy — across a run's units, reported through Reporter.Verbose once
// the Broker finishes.
type Stats struct {
	mu      sync.Mutex
	entries []statEntry
}

// NewStats creates an empty Stats accumulator.
func NewStats() *Stats {
	return &Stats{}
}

// Record appends one unit's search result. predicted is the Tracker's
// bound-narrowing prediction made before the search ran, or nil if no
// Tracker was configured or nothing had completed yet.
func (s *Stats) Record(unitIndex int, result Result, predicted *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, statEntry{unitIndex: unitIndex, result: result, predicted: predicted})
}

// Report writes an aggregated diagnostic summary to rep.Verbose. A no-op
// if no units have completed a search yet.
func (s *Stats) Report(rep reporter.Reporter) {
	s.mu.Lock()
	entries := make([]statEntry, len(s.entries))
	copy(entries, s.entries)
	s.mu.Unlock()

	if len(entries) == 0 {
		return
	}

	rep.Verbose("")
	rep.Verbose("=== QualitySearch statistics ===")
	reportRounds(rep, entries)
	reportQuantizerDistribution(rep, entries)
	reportPredictionAccuracy(rep, entries)
	rep.Verbose("=== end QualitySearch statistics ===")
	rep.Verbose("")
}

func reportRounds(rep reporter.Reporter, entries []statEntry) {
	var totalRounds, minRounds, maxRounds int
	minRounds = math.MaxInt
	breakdown := make(map[int]int)

	for _, e := range entries {
		rounds := len(e.result.Probes)
		totalRounds += rounds
		if rounds < minRounds {
			minRounds = rounds
		}
		if rounds > maxRounds {
			maxRounds = rounds
		}
		breakdown[min(rounds, 4)]++
	}

	avg := float64(totalRounds) / float64(len(entries))
	rep.Verbose(fmt.Sprintf("probe rounds: avg=%.1f min=%d max=%d", avg, minRounds, maxRounds))

	for rounds := 1; rounds <= 4; rounds++ {
		count := breakdown[rounds]
		if count == 0 {
			continue
		}
		label := fmt.Sprintf("%d round", rounds)
		if rounds == 4 {
			label = "4+ rounds"
		} else if rounds != 1 {
			label += "s"
		}
		rep.Verbose(fmt.Sprintf("  %s: %d units", label, count))
	}
}

func reportQuantizerDistribution(rep reporter.Reporter, entries []statEntry) {
	values := make([]float64, len(entries))
	var sum float64
	minQ, maxQ := math.MaxFloat64, -math.MaxFloat64
	for i, e := range entries {
		q := float64(e.result.Quantizer)
		values[i] = q
		sum += q
		minQ = math.Min(minQ, q)
		maxQ = math.Max(maxQ, q)
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, q := range values {
		diff := q - mean
		variance += diff * diff
	}
	stddev := math.Sqrt(variance / float64(len(values)))

	rep.Verbose(fmt.Sprintf("chosen quantizer: min=%.0f max=%.0f mean=%.1f stddev=%.1f", minQ, maxQ, mean, stddev))
}

func reportPredictionAccuracy(rep reporter.Reporter, entries []statEntry) {
	var totalDelta, maxDelta float64
	var predicted int

	sorted := make([]statEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].unitIndex < sorted[j].unitIndex })

	for _, e := range sorted {
		if e.predicted == nil {
			continue
		}
		delta := math.Abs(*e.predicted - float64(e.result.Quantizer))
		totalDelta += delta
		maxDelta = math.Max(maxDelta, delta)
		predicted++
	}

	if predicted == 0 {
		return
	}
	rep.Verbose(fmt.Sprintf("tracker prediction accuracy: avg delta=%.1f max delta=%.1f (%d units)",
		totalDelta/float64(predicted), maxDelta, predicted))
}
