// Package quality implements the QualitySearch: a per-unit,
// interpolation-guided bounded search over an encoder's quantizer parameter
// that lands a quality metric within tolerance of a target score.
package quality

import (
	"context"
	"math"

	"github.com/wrightlab/chunkcast/internal/unit"
)

// Probe is one (quantizer, score) history entry.
type Probe struct {
	Quantizer int
	Score     float64
}

// QualityProbe returns a scalar quality score for a (unit, quantizer) pair.
// It is an external collaborator — metric computation (VMAF, XPSNR,
// SSIMULACRA2, ...) is out of the core's scope.
type QualityProbe interface {
	Score(ctx context.Context, u *unit.Unit, quantizer int) (float64, error)
}

// TolerancePercent is the fixed relative tolerance (percent of target) used
// to decide convergence, per §4.E.
const TolerancePercent = 1.0

// Result is the outcome of a completed search.
type Result struct {
	Quantizer int
	Probes    []Probe
}

// Search runs the bounded interpolation-guided search described in §4.E and
// returns the chosen quantizer.
func Search(ctx context.Context, u *unit.Unit, target float64, minQ, maxQ, maxProbes int, probe QualityProbe) (Result, error) {
	tolerance := TolerancePercent / 100 // relative fraction of target, e.g. 0.01

	lower, upper := float64(minQ), float64(maxQ)
	var history []Probe
	probedSet := make(map[int]bool)

	for round := 0; round < maxProbes; round++ {
		predicted := predictNext(history, target, lower, upper)

		if probedSet[predicted] {
			break // converged: the predicted quantizer was already tried
		}

		score, err := probe.Score(ctx, u, predicted)
		if err != nil {
			return Result{}, err
		}

		history = append(history, Probe{Quantizer: predicted, Score: score})
		probedSet[predicted] = true

		if math.Abs(score-target)/target < tolerance {
			break
		}

		if score > target {
			lower = float64(predicted) + 1
		} else {
			upper = float64(predicted) - 1
		}
		if lower > upper {
			break
		}
	}

	return Result{Quantizer: selectQuantizer(history, target, tolerance), Probes: history}, nil
}

// predictNext picks the next quantizer to probe per §4.E step 1: binary
// search with fewer than 2 history points, otherwise a spline through
// (score, quantizer), falling back to linear and then binary search if
// interpolation fails.
func predictNext(history []Probe, target, lower, upper float64) int {
	var predicted float64

	if len(history) < 2 {
		predicted = (lower + upper) / 2
	} else if result := predictQuantizer(history, target); result != nil {
		predicted = *result
	} else {
		predicted = (lower + upper) / 2
	}

	predicted = clamp(predicted, lower, upper)
	return int(math.Round(predicted))
}

// selectQuantizer applies the termination selection rule: the highest
// quantizer among those within tolerance, else the closest to target.
func selectQuantizer(history []Probe, target, tolerance float64) int {
	if len(history) == 0 {
		return 0
	}

	bestWithinTolerance := -1
	haveWithinTolerance := false
	closestIdx := 0
	closestDiff := math.Abs(history[0].Score - target)

	for i, p := range history {
		diff := math.Abs(p.Score - target)
		if diff/target < tolerance {
			if !haveWithinTolerance || p.Quantizer > bestWithinTolerance {
				bestWithinTolerance = p.Quantizer
				haveWithinTolerance = true
			}
		}
		if diff < closestDiff {
			closestDiff = diff
			closestIdx = i
		}
	}

	if haveWithinTolerance {
		return bestWithinTolerance
	}
	return history[closestIdx].Quantizer
}

func clamp(v, lower, upper float64) float64 {
	if v < lower {
		return lower
	}
	if v > upper {
		return upper
	}
	return v
}
