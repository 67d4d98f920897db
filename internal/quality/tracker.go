package quality

import "sync"

// Tracker maintains completed units' chosen quantizers and predicts a
// starting point for a new unit from its nearest completed neighbors, the
// way per-shot encodes of similar content tend to converge on similar
// quantizers. The Broker's SearchingRunner uses the prediction to narrow a
// unit's [min_q, max_q] before its first probe, so Search needs fewer
// rounds to converge on units later in a run than on the first few.
type Tracker struct {
	mu      sync.RWMutex
	results map[int]float64 // unit index -> chosen quantizer
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{results: make(map[int]float64)}
}

// Record stores the final quantizer chosen for a completed unit.
func (t *Tracker) Record(unitIndex int, quantizer float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results[unitIndex] = quantizer
}

// Count returns the number of recorded results.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.results)
}

// Predict returns an inverse-distance-weighted average quantizer from up to
// 4 nearest completed units, or defaultQ if nothing has completed yet.
func (t *Tracker) Predict(unitIndex int, defaultQ float64) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.results) == 0 {
		return defaultQ
	}

	type neighbor struct {
		dist      int
		quantizer float64
	}
	neighbors := make([]neighbor, 0, len(t.results))
	for idx, q := range t.results {
		dist := unitIndex - idx
		if dist < 0 {
			dist = -dist
		}
		neighbors = append(neighbors, neighbor{dist, q})
	}

	for i := 1; i < len(neighbors); i++ {
		for j := i; j > 0 && neighbors[j].dist < neighbors[j-1].dist; j-- {
			neighbors[j], neighbors[j-1] = neighbors[j-1], neighbors[j]
		}
	}
	if len(neighbors) > 4 {
		neighbors = neighbors[:4]
	}

	var weightedSum, weightSum float64
	for _, n := range neighbors {
		if n.dist == 0 {
			return n.quantizer
		}
		weight := 1.0 / float64(n.dist)
		weightedSum += n.quantizer * weight
		weightSum += weight
	}
	if weightSum == 0 {
		return defaultQ
	}
	return weightedSum / weightSum
}

// NarrowBoundsWindow bounds how far a prediction can pull [min_q, max_q] in
// from its configured extremes, so a bad early prediction can't strand the
// search outside the region that actually contains the target quality.
const NarrowBoundsWindow = 8

// NarrowBounds narrows [minQ, maxQ] around the Tracker's prediction for
// unitIndex, clamped back to the caller's original bounds. Returns the
// bounds unchanged if nothing has completed yet.
func (t *Tracker) NarrowBounds(unitIndex, minQ, maxQ int) (int, int) {
	if t.Count() == 0 {
		return minQ, maxQ
	}

	predicted := t.Predict(unitIndex, float64(minQ+maxQ)/2)
	lower := int(predicted) - NarrowBoundsWindow
	upper := int(predicted) + NarrowBoundsWindow
	if lower < minQ {
		lower = minQ
	}
	if upper > maxQ {
		upper = maxQ
	}
	if lower > upper {
		return minQ, maxQ
	}
	return lower, upper
}
