package quality

import "testing"

func TestTrackerPredictReturnsDefaultWhenEmpty(t *testing.T) {
	tr := NewTracker()
	if got := tr.Predict(5, 30); got != 30 {
		t.Errorf("expected default 30 with no history, got %v", got)
	}
}

func TestTrackerPredictExactMatch(t *testing.T) {
	tr := NewTracker()
	tr.Record(3, 24)
	if got := tr.Predict(3, 30); got != 24 {
		t.Errorf("expected exact match 24, got %v", got)
	}
}

func TestTrackerPredictWeightsNearerNeighborMore(t *testing.T) {
	tr := NewTracker()
	tr.Record(0, 20)
	tr.Record(10, 40)

	got := tr.Predict(1, 30)
	// distance 1 from unit 0 (weight 1), distance 9 from unit 10 (weight 1/9):
	// predicted should land much closer to 20 than to 40.
	if got >= 25 {
		t.Errorf("expected prediction closer to nearer neighbor (20), got %v", got)
	}
}

func TestTrackerNarrowBoundsClampsToOriginal(t *testing.T) {
	tr := NewTracker()
	tr.Record(0, 50)

	lower, upper := tr.NarrowBounds(1, 10, 60)
	if lower < 10 || upper > 60 {
		t.Errorf("expected narrowed bounds within [10,60], got [%d,%d]", lower, upper)
	}
	if upper-lower > 2*NarrowBoundsWindow {
		t.Errorf("expected a window no wider than %d around the prediction, got [%d,%d]", 2*NarrowBoundsWindow, lower, upper)
	}
}

func TestTrackerNarrowBoundsUnchangedWhenEmpty(t *testing.T) {
	tr := NewTracker()
	lower, upper := tr.NarrowBounds(0, 10, 60)
	if lower != 10 || upper != 60 {
		t.Errorf("expected unchanged bounds with no history, got [%d,%d]", lower, upper)
	}
}
