package partition

import (
	"path/filepath"
	"testing"

	"github.com/wrightlab/chunkcast/internal/config"
	"github.com/wrightlab/chunkcast/internal/unit"
)

type fakeProfile struct{}

func (fakeProfile) BinaryName() string                                                        { return "fake" }
func (fakeProfile) OutputExtension() string                                                    { return "ivf" }
func (fakeProfile) DefaultPasses() int                                                         { return 1 }
func (fakeProfile) Compose1Pass(params []string, output string, frameCount int) []string       { return params }
func (fakeProfile) ComposeFirstOfTwo(params []string, output string, frameCount int) []string   { return params }
func (fakeProfile) ComposeSecondOfTwo(params []string, output string, frameCount int) []string  { return params }
func (fakeProfile) ParseEncodedFrames(line string) (int, bool)                                 { return 0, false }
func (fakeProfile) IsQuantizerToken(token string) bool                                          { return token == "--crf" }
func (fakeProfile) ReplaceQuantizer(params []string, q int) []string                           { return params }
func (fakeProfile) InsertQuantizer(params []string, q int) []string                            { return params }
func (fakeProfile) FormatBitDepth(pixFmt string) int                                           { return 10 }

func TestExactPartition(t *testing.T) {
	// Scenario 1 from spec.md §8: 1000 frames, scenes [(0,600),(600,1000)].
	scenes := []Scene{{Start: 0, End: 600}, {Start: 600, End: 1000}}
	dir := t.TempDir()

	units, err := Plan(scenes, Options{
		TempDir:        dir,
		Input:          unit.InputDescriptor{RawPath: "/in.mkv"},
		EncoderProfile: fakeProfile{},
		Mode:           config.ExtractSelect,
		Order:          config.OrderSequential,
		Passes:         1,
	}, filepath.Join(dir, QueueFileName))
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	if units[0].Frames() != 600 || units[1].Frames() != 400 {
		t.Errorf("expected frame counts 600,400; got %d,%d", units[0].Frames(), units[1].Frames())
	}
}

func TestSubdivideOversizedMatchesPinnedRoundingRule(t *testing.T) {
	// Scenario 2 from spec.md §8: 1000 frames, one scene, extra_splits_len=240.
	scenes := []Scene{{Start: 0, End: 1000}}
	got := SubdivideOversized(scenes, 240)

	if len(got) != 5 {
		t.Fatalf("expected 5 sub-scenes, got %d", len(got))
	}
	for i, sc := range got {
		if sc.Frames() != 200 {
			t.Errorf("sub-scene %d: expected 200 frames, got %d", i, sc.Frames())
		}
	}
}

func TestSubdivideOversizedFrontLoadsRemainder(t *testing.T) {
	scenes := []Scene{{Start: 0, End: 1000}}
	got := SubdivideOversized(scenes, 333)
	// n = ceil(1000/333) = 4, base = 250, remainder = 0
	if len(got) != 4 {
		t.Fatalf("expected 4 sub-scenes, got %d", len(got))
	}

	scenes2 := []Scene{{Start: 0, End: 10}}
	got2 := SubdivideOversized(scenes2, 3)
	// n = ceil(10/3) = 4, base = 2, remainder = 2 -> sizes {3,3,2,2}
	if len(got2) != 4 {
		t.Fatalf("expected 4 sub-scenes, got %d", len(got2))
	}
	wantSizes := []int{3, 3, 2, 2}
	for i, sc := range got2 {
		if sc.Frames() != wantSizes[i] {
			t.Errorf("sub-scene %d: expected %d frames, got %d", i, wantSizes[i], sc.Frames())
		}
	}
	total := 0
	for _, sc := range got2 {
		total += sc.Frames()
	}
	if total != 10 {
		t.Errorf("subdivided frames should sum to original length, got %d", total)
	}
}

func TestSubdivideUnderThresholdUnchanged(t *testing.T) {
	scenes := []Scene{{Start: 0, End: 100}}
	got := SubdivideOversized(scenes, 240)
	if len(got) != 1 || got[0] != scenes[0] {
		t.Errorf("expected scene left unchanged, got %v", got)
	}
}

func TestPlanPersistsUniqueOutputPaths(t *testing.T) {
	scenes := []Scene{{Start: 0, End: 100}, {Start: 100, End: 200}, {Start: 200, End: 300}}
	dir := t.TempDir()

	units, err := Plan(scenes, Options{
		TempDir:        dir,
		Input:          unit.InputDescriptor{RawPath: "/in.mkv"},
		EncoderProfile: fakeProfile{},
		Mode:           config.ExtractSelect,
		Order:          config.OrderLongestFirst,
		Passes:         1,
	}, filepath.Join(dir, QueueFileName))
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	seen := make(map[string]bool)
	for _, u := range units {
		if seen[u.OutputPath()] {
			t.Errorf("duplicate output path %s", u.OutputPath())
		}
		seen[u.OutputPath()] = true
	}
}

func TestLoadRoundTripsThroughSave(t *testing.T) {
	scenes := []Scene{{Start: 0, End: 600}, {Start: 600, End: 1000}}
	dir := t.TempDir()
	path := filepath.Join(dir, QueueFileName)

	units, err := Plan(scenes, Options{
		TempDir:        dir,
		Input:          unit.InputDescriptor{RawPath: "/in.mkv"},
		EncoderProfile: fakeProfile{},
		Mode:           config.ExtractSelect,
		Order:          config.OrderSequential,
		Passes:         1,
	}, path)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	loaded, err := Load(path, fakeProfile{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != len(units) {
		t.Fatalf("expected %d units reloaded, got %d", len(units), len(loaded))
	}
	for i := range units {
		if loaded[i].Index != units[i].Index || loaded[i].Frames() != units[i].Frames() {
			t.Errorf("unit %d did not round-trip: got index=%d frames=%d", i, loaded[i].Index, loaded[i].Frames())
		}
	}
}

func TestLoadMissingQueueReturnsNil(t *testing.T) {
	units, err := Load(filepath.Join(t.TempDir(), QueueFileName), fakeProfile{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if units != nil {
		t.Errorf("expected nil units for missing queue file, got %v", units)
	}
}

func TestScenesFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ScenesFileName)
	scenes := []Scene{{Start: 0, End: 500}, {Start: 500, End: 1000}}

	if err := SaveScenesFile(path, scenes, 1000); err != nil {
		t.Fatalf("SaveScenesFile() error = %v", err)
	}

	loaded, total, err := LoadScenesFile(path)
	if err != nil {
		t.Fatalf("LoadScenesFile() error = %v", err)
	}
	if total != 1000 {
		t.Errorf("expected total_frames=1000, got %d", total)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(loaded))
	}
}
