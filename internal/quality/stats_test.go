package quality

import (
	"strings"
	"testing"

	"github.com/wrightlab/chunkcast/internal/reporter"
)

type recordingReporter struct {
	reporter.NullReporter
	lines []string
}

func (r *recordingReporter) Verbose(message string) {
	r.lines = append(r.lines, message)
}

func TestStatsReportNoopWhenEmpty(t *testing.T) {
	s := NewStats()
	rep := &recordingReporter{}
	s.Report(rep)
	if len(rep.lines) != 0 {
		t.Errorf("expected no output with no recorded units, got %v", rep.lines)
	}
}

func TestStatsReportSummarizesRecordedUnits(t *testing.T) {
	s := NewStats()
	p1 := 28.0
	s.Record(0, Result{Quantizer: 30, Probes: []Probe{{Quantizer: 35, Score: 88}, {Quantizer: 30, Score: 90}}}, &p1)
	s.Record(1, Result{Quantizer: 32, Probes: []Probe{{Quantizer: 32, Score: 90}}}, nil)

	rep := &recordingReporter{}
	s.Report(rep)

	if len(rep.lines) == 0 {
		t.Fatal("expected a non-empty report")
	}
	joined := strings.Join(rep.lines, "\n")
	for _, want := range []string{"probe rounds", "chosen quantizer", "tracker prediction accuracy"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected report to mention %q, got:\n%s", want, joined)
		}
	}
}
