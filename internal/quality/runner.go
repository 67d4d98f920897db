package quality

import (
	"context"

	"github.com/wrightlab/chunkcast/internal/unit"
)

// Runner is the next pipeline stage a SearchingRunner delegates to once a
// unit's quantizer has been chosen. Satisfied by *pipeline.Runner.
type Runner interface {
	RunUnit(ctx context.Context, u *unit.Unit) (int, error)
}

// SearchingRunner wraps a Runner so that, per §4.F's worker-loop ordering
// guarantee, QualitySearch runs before a unit's pass 1: it populates
// u.ChosenQuantizer (when not already set, e.g. by a resumed run) before
// delegating to Next.
type SearchingRunner struct {
	Next  Runner
	Probe QualityProbe

	Target    float64
	MinQ      int
	MaxQ      int
	MaxProbes int

	// Tracker, when set, narrows [MinQ, MaxQ] per unit from nearby
	// completed units' chosen quantizers before the first probe, and
	// records this unit's result once the search converges.
	Tracker *Tracker
	// Stats, when set, accumulates per-unit search diagnostics for a
	// summary report once the run completes.
	Stats *Stats
}

// RunUnit implements broker.Runner.
func (s *SearchingRunner) RunUnit(ctx context.Context, u *unit.Unit) (int, error) {
	if u.ChosenQuantizer == nil {
		minQ, maxQ := s.MinQ, s.MaxQ
		var predicted *float64
		if s.Tracker != nil {
			minQ, maxQ = s.Tracker.NarrowBounds(u.Index, s.MinQ, s.MaxQ)
			if s.Tracker.Count() > 0 {
				p := s.Tracker.Predict(u.Index, float64(s.MinQ+s.MaxQ)/2)
				predicted = &p
			}
		}

		result, err := Search(ctx, u, s.Target, minQ, maxQ, s.MaxProbes, s.Probe)
		if err != nil {
			return 0, err
		}
		u.ChosenQuantizer = &result.Quantizer

		if s.Tracker != nil {
			s.Tracker.Record(u.Index, float64(result.Quantizer))
		}
		if s.Stats != nil {
			s.Stats.Record(u.Index, result, predicted)
		}
	}
	return s.Next.RunUnit(ctx, u)
}
