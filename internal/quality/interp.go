package quality

import "sort"

// hermiteInterp evaluates a cubic Hermite spline at xi given interval
// [xk, xk1], function values [yk, yk1], and derivatives [dk, dk1].
func hermiteInterp(xk, xk1, yk, yk1, dk, dk1, xi float64) float64 {
	h := xk1 - xk
	t := (xi - xk) / h
	t2 := t * t
	t3 := t2 * t

	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2

	return h00*yk + h10*h*dk + h01*yk1 + h11*h*dk1
}

// lerp performs linear interpolation between two (x, y) points. Returns nil
// if the two x values coincide.
func lerp(x0, y0, x1, y1, xi float64) *float64 {
	if x1 == x0 {
		return nil
	}
	t := (xi - x0) / (x1 - x0)
	result := y0 + t*(y1-y0)
	return &result
}

// catmullRom evaluates a Catmull-Rom spline through sorted points (x, y) at
// xi, using the two points bracketing xi plus their neighbors (duplicating
// the endpoint when one side has no neighbor). Requires len(x) >= 3,
// strictly increasing x, and xi within [x[0], x[n-1]]; returns nil
// otherwise (xi outside the convex hull of the probed points).
func catmullRom(x, y []float64, xi float64) *float64 {
	n := len(x)
	if n < 3 {
		return nil
	}
	for i := 0; i < n-1; i++ {
		if x[i+1] <= x[i] {
			return nil
		}
	}
	if xi < x[0] || xi > x[n-1] {
		return nil
	}

	k := 0
	for i := 0; i < n-1; i++ {
		if xi >= x[i] && xi <= x[i+1] {
			k = i
			break
		}
	}

	prev := k - 1
	if prev < 0 {
		prev = 0
	}
	next := k + 2
	if next > n-1 {
		next = n - 1
	}

	// Tangents via the standard Catmull-Rom finite-difference rule.
	var dk, dk1 float64
	if k == 0 {
		dk = (y[k+1] - y[k]) / (x[k+1] - x[k])
	} else {
		dk = (y[k+1] - y[prev]) / (x[k+1] - x[prev])
	}
	if k+1 == n-1 {
		dk1 = (y[k+1] - y[k]) / (x[k+1] - x[k])
	} else {
		dk1 = (y[next] - y[k]) / (x[next] - x[k])
	}

	result := hermiteInterp(x[k], x[k+1], y[k], y[k+1], dk, dk1, xi)
	return &result
}

// predictQuantizer builds a spline through the (score, quantizer) points of
// probes — Catmull-Rom at >=3 points, linear at exactly 2 — and evaluates it
// at target, per §4.E step 1. Returns nil if fewer than 2 probes exist or
// the two points of the linear step share a score; outside the range of
// probed scores the linear step extrapolates.
func predictQuantizer(probes []Probe, target float64) *float64 {
	if len(probes) < 2 {
		return nil
	}

	sorted := make([]Probe, len(probes))
	copy(sorted, probes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score < sorted[j].Score })

	scores := make([]float64, len(sorted))
	quantizers := make([]float64, len(sorted))
	for i, p := range sorted {
		scores[i] = p.Score
		quantizers[i] = float64(p.Quantizer)
	}

	if len(sorted) >= 3 {
		if result := catmullRom(scores, quantizers, target); result != nil {
			return result
		}
		// Fall back to linear through the two highest-scoring points.
	}

	n := len(scores)
	return lerp(scores[n-2], quantizers[n-2], scores[n-1], quantizers[n-1], target)
}
