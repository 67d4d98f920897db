package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/wrightlab/chunkcast/internal/unit"
)

// fakeProfile simulates an encoder profile around the "cat" and "false"
// utilities so pipeline tests exercise real child processes without
// depending on any actual encoder binary.
type fakeProfile struct {
	binary string
}

func (p fakeProfile) BinaryName() string      { return p.binary }
func (fakeProfile) OutputExtension() string    { return "ivf" }
func (fakeProfile) DefaultPasses() int         { return 1 }
func (fakeProfile) Compose1Pass(params []string, output string, frameCount int) []string {
	return nil
}
func (fakeProfile) ComposeFirstOfTwo(params []string, output string, frameCount int) []string {
	return nil
}
func (fakeProfile) ComposeSecondOfTwo(params []string, output string, frameCount int) []string {
	return nil
}
func (fakeProfile) ParseEncodedFrames(line string) (int, bool) { return 0, false }
func (fakeProfile) IsQuantizerToken(string) bool               { return false }
func (fakeProfile) ReplaceQuantizer(p []string, q int) []string { return p }
func (fakeProfile) InsertQuantizer(p []string, q int) []string  { return p }
func (fakeProfile) FormatBitDepth(string) int                   { return 10 }

type countingProber struct {
	frames int
	err    error
}

func (p countingProber) CountFrames(ctx context.Context, path string) (int, error) {
	return p.frames, p.err
}

func TestRunSucceedsWithMatchingFrameCount(t *testing.T) {
	dir := t.TempDir()
	outputDir := filepath.Join(dir, "encode")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		t.Fatal(err)
	}

	u := &unit.Unit{
		Index:           0,
		TempDir:         dir,
		OutputExtension: "ivf",
		StartFrame:      0,
		EndFrame:        10,
		Passes:          1,
		SourceCommand:   []string{"true"},
		EncoderProfile:  fakeProfile{binary: "true"},
	}

	r := &Runner{Prober: countingProber{frames: 10}}
	if err := r.Run(context.Background(), u, 1, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRunReturnsEncoderCrashOnNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	u := &unit.Unit{
		Index:           0,
		TempDir:         dir,
		OutputExtension: "ivf",
		StartFrame:      0,
		EndFrame:        10,
		Passes:          1,
		SourceCommand:   []string{"true"},
		EncoderProfile:  fakeProfile{binary: "false"},
	}

	r := &Runner{Prober: countingProber{frames: 10}}
	err := r.Run(context.Background(), u, 1, nil)
	if err == nil {
		t.Fatal("expected error for non-zero encoder exit")
	}
}

func TestRunReturnsFrameMismatchOnFinalPass(t *testing.T) {
	dir := t.TempDir()
	u := &unit.Unit{
		Index:           0,
		TempDir:         dir,
		OutputExtension: "ivf",
		StartFrame:      0,
		EndFrame:        10,
		Passes:          1,
		SourceCommand:   []string{"true"},
		EncoderProfile:  fakeProfile{binary: "true"},
	}

	r := &Runner{Prober: countingProber{frames: 9}}
	err := r.Run(context.Background(), u, 1, nil)
	if err == nil {
		t.Fatal("expected frame mismatch error")
	}
}

func TestRunIgnoresFrameMismatchWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	u := &unit.Unit{
		Index:               0,
		TempDir:             dir,
		OutputExtension:     "ivf",
		StartFrame:          0,
		EndFrame:            10,
		Passes:              1,
		SourceCommand:       []string{"true"},
		EncoderProfile:      fakeProfile{binary: "true"},
		IgnoreFrameMismatch: true,
	}

	r := &Runner{Prober: countingProber{frames: 9}}
	if err := r.Run(context.Background(), u, 1, nil); err != nil {
		t.Fatalf("expected no error with ignore_frame_mismatch, got %v", err)
	}
}

func TestRunSkipsFrameProbeOnNonFinalPass(t *testing.T) {
	dir := t.TempDir()
	u := &unit.Unit{
		Index:           0,
		TempDir:         dir,
		OutputExtension: "ivf",
		StartFrame:      0,
		EndFrame:        10,
		Passes:          2,
		SourceCommand:   []string{"true"},
		EncoderProfile:  fakeProfile{binary: "true"},
	}

	r := &Runner{Prober: countingProber{frames: 2}} // would mismatch if checked
	if err := r.Run(context.Background(), u, 1, nil); err != nil {
		t.Fatalf("non-final pass should not probe frames, got error %v", err)
	}
}

func TestBoundedBufferCapsSize(t *testing.T) {
	buf := newBoundedBuffer(8)
	_, _ = buf.Write([]byte("0123456789ABCDEF"))
	if len(buf.String()) != 8 {
		t.Errorf("expected buffer capped at 8 bytes, got %d (%q)", len(buf.String()), buf.String())
	}
	if buf.String() != "89ABCDEF" {
		t.Errorf("expected tail retained, got %q", buf.String())
	}
}
