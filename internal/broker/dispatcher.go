package broker

import (
	"sync"

	"github.com/wrightlab/chunkcast/internal/unit"
)

// adaptiveDispatcher picks the ready unit nearest (by Index) to any already
// completed unit, falling back to the lowest index before anything has
// completed. Adjacent units tend to share similar source content, so a
// worker that just finished one unit's quantizer search benefits from
// starting on its neighbor next.
type adaptiveDispatcher struct {
	mu        sync.Mutex
	ready     map[int]*unit.Unit
	completed map[int]bool
}

func newAdaptiveDispatcher(units []*unit.Unit) *adaptiveDispatcher {
	ready := make(map[int]*unit.Unit, len(units))
	for _, u := range units {
		ready[u.Index] = u
	}
	return &adaptiveDispatcher{ready: ready, completed: make(map[int]bool)}
}

// next returns the next unit to dispatch, or false once ready is empty.
func (d *adaptiveDispatcher) next() (*unit.Unit, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.ready) == 0 {
		return nil, false
	}

	if len(d.completed) == 0 {
		return d.pickLowest(), true
	}

	var best *unit.Unit
	bestDist := -1
	for _, u := range d.ready {
		dist := d.minDistToCompleted(u.Index)
		if bestDist < 0 || dist < bestDist || (dist == bestDist && u.Index < best.Index) {
			best = u
			bestDist = dist
		}
	}

	delete(d.ready, best.Index)
	return best, true
}

func (d *adaptiveDispatcher) markComplete(idx int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completed[idx] = true
}

func (d *adaptiveDispatcher) pickLowest() *unit.Unit {
	lowestIdx := -1
	var lowest *unit.Unit
	for idx, u := range d.ready {
		if lowestIdx < 0 || idx < lowestIdx {
			lowestIdx = idx
			lowest = u
		}
	}
	delete(d.ready, lowestIdx)
	return lowest
}

func (d *adaptiveDispatcher) minDistToCompleted(idx int) int {
	minDist := -1
	for c := range d.completed {
		dist := idx - c
		if dist < 0 {
			dist = -dist
		}
		if minDist < 0 || dist < minDist {
			minDist = dist
		}
	}
	return minDist
}
