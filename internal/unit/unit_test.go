package unit

import (
	"strconv"
	"strings"
	"testing"
)

type fakeProfile struct{}

func (fakeProfile) BinaryName() string      { return "fake-enc" }
func (fakeProfile) OutputExtension() string { return "ivf" }
func (fakeProfile) DefaultPasses() int      { return 1 }

func (fakeProfile) Compose1Pass(params []string, output string, frameCount int) []string {
	args := append([]string{"--frames", itoa(frameCount)}, params...)
	return append(args, "-o", output)
}

func (fakeProfile) ComposeFirstOfTwo(params []string, output string, frameCount int) []string {
	return append([]string{"--pass", "1"}, params...)
}

func (fakeProfile) ComposeSecondOfTwo(params []string, output string, frameCount int) []string {
	return append([]string{"--pass", "2"}, params...)
}

func (fakeProfile) ParseEncodedFrames(line string) (int, bool) {
	return 0, false
}

func (fakeProfile) IsQuantizerToken(token string) bool {
	return token == "--crf"
}

func (p fakeProfile) ReplaceQuantizer(params []string, q int) []string {
	out := make([]string, len(params))
	copy(out, params)
	for i, tok := range out {
		if tok == "--crf" && i+1 < len(out) {
			out[i+1] = itoa(q)
			return out
		}
	}
	return p.InsertQuantizer(out, q)
}

func (fakeProfile) InsertQuantizer(params []string, q int) []string {
	return append(append([]string{}, params...), "--crf", itoa(q))
}

func (fakeProfile) FormatBitDepth(pixFmt string) int { return 10 }

func itoa(n int) string {
	return strconv.Itoa(n)
}

func TestUnitFramesAndName(t *testing.T) {
	u := &Unit{Index: 3, StartFrame: 600, EndFrame: 1000}
	if u.Frames() != 400 {
		t.Errorf("Frames() = %d, want 400", u.Frames())
	}
	if u.Name() != "00003" {
		t.Errorf("Name() = %q, want 00003", u.Name())
	}
}

func TestUnitOutputPath(t *testing.T) {
	u := &Unit{Index: 1, TempDir: "/tmp/run", OutputExtension: "ivf"}
	want := "/tmp/run/encode/00001.ivf"
	if got := u.OutputPath(); got != want {
		t.Errorf("OutputPath() = %q, want %q", got, want)
	}
}

func TestUnitTrialIsolatesOutputAndLeavesOriginalUntouched(t *testing.T) {
	u := &Unit{Index: 2, TempDir: "/tmp/run", OutputExtension: "ivf", Passes: 2}

	trial := u.Trial(30)

	if trial.TempDir == u.TempDir {
		t.Error("expected Trial to root its output under a distinct temp_dir")
	}
	if trial.Passes != 1 {
		t.Errorf("expected a trial encode to be single-pass, got %d", trial.Passes)
	}
	if trial.ChosenQuantizer == nil || *trial.ChosenQuantizer != 30 {
		t.Errorf("expected trial.ChosenQuantizer = 30, got %v", trial.ChosenQuantizer)
	}
	if u.ChosenQuantizer != nil {
		t.Error("expected Trial not to mutate the original unit")
	}
	if u.Passes != 2 {
		t.Errorf("expected original unit's Passes to remain 2, got %d", u.Passes)
	}
}

func TestApplyQuantizerInsertsWhenAbsent(t *testing.T) {
	u := &Unit{}
	profile := fakeProfile{}
	argv := []string{"--preset", "6"}
	out := u.ApplyQuantizer(profile, argv, 30)
	if !contains(out, "--crf") {
		t.Errorf("expected --crf inserted, got %v", out)
	}
}

func TestApplyQuantizerReplacesWhenPresent(t *testing.T) {
	u := &Unit{}
	profile := fakeProfile{}
	argv := []string{"--crf", "20", "--preset", "6"}
	out := u.ApplyQuantizer(profile, argv, 30)

	if out[1] != "30" {
		t.Errorf("expected quantizer replaced to 30, got %v", out)
	}
	if len(out) != len(argv) {
		t.Errorf("replace should not change argv length, got %v", out)
	}
}

func TestApplyQuantizerIdempotent(t *testing.T) {
	u := &Unit{}
	profile := fakeProfile{}
	argv := []string{"--preset", "6"}

	once := u.ApplyQuantizer(profile, argv, 30)
	twice := u.ApplyQuantizer(profile, once, 30)

	if strings.Join(once, " ") != strings.Join(twice, " ") {
		t.Errorf("ApplyQuantizer should be idempotent: once=%v twice=%v", once, twice)
	}
}

func TestBuildPassCommandAppliesChosenQuantizer(t *testing.T) {
	q := 25
	u := &Unit{
		Index:           0,
		TempDir:         "/tmp/run",
		OutputExtension: "ivf",
		StartFrame:      0,
		EndFrame:        100,
		Passes:          1,
		VideoParams:     []string{"--preset", "6"},
		ChosenQuantizer: &q,
	}
	profile := fakeProfile{}
	argv := u.BuildPassCommand(profile, 1)

	found := false
	for i, tok := range argv {
		if tok == "--crf" && i+1 < len(argv) && argv[i+1] == "25" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected chosen quantizer 25 applied, got %v", argv)
	}
}

func contains(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}
