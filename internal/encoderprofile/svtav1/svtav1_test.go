package svtav1

import (
	"testing"
)

func TestCompose1Pass(t *testing.T) {
	p := New()
	argv := p.Compose1Pass([]string{"--preset", "6"}, "/tmp/00000.ivf", 600)

	if !containsPair(argv, "--frames", "600") {
		t.Errorf("expected --frames 600 in %v", argv)
	}
	if !containsPair(argv, "-b", "/tmp/00000.ivf") {
		t.Errorf("expected -b output in %v", argv)
	}
}

func TestParseEncodedFrames(t *testing.T) {
	p := New()

	tests := []struct {
		line    string
		want    int
		wantOK  bool
	}{
		{"Encoding frame   42  12.34 kbps  23.45 fps", 42, true},
		{"frame 7", 7, true},
		{"SVT-AV1 initializing...", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := p.ParseEncodedFrames(tt.line)
		if ok != tt.wantOK {
			t.Errorf("ParseEncodedFrames(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParseEncodedFrames(%q) = %d, want %d", tt.line, got, tt.want)
		}
	}
}

func TestReplaceQuantizerIdempotent(t *testing.T) {
	p := New()
	argv := []string{"--preset", "6", "--crf", "30"}

	once := p.ReplaceQuantizer(argv, 22)
	twice := p.ReplaceQuantizer(once, 22)

	if !containsPair(once, "--crf", "22") {
		t.Errorf("expected --crf 22 after replace, got %v", once)
	}
	if len(once) != len(twice) {
		t.Errorf("replacing twice should not grow argv: once=%v twice=%v", once, twice)
	}
}

func TestInsertQuantizerWhenAbsent(t *testing.T) {
	p := New()
	argv := []string{"--preset", "6"}
	out := p.InsertQuantizer(argv, 30)

	if !containsPair(out, "--crf", "30") {
		t.Errorf("expected --crf 30 inserted, got %v", out)
	}
	if len(out) != len(argv)+2 {
		t.Errorf("expected argv to grow by 2, got %v", out)
	}
}

func TestFormatBitDepth(t *testing.T) {
	p := New()
	tests := map[string]int{
		"yuv420p":   8,
		"yuv420p10le": 10,
		"yuv420p12le": 12,
	}
	for pixFmt, want := range tests {
		if got := p.FormatBitDepth(pixFmt); got != want {
			t.Errorf("FormatBitDepth(%q) = %d, want %d", pixFmt, got, want)
		}
	}
}

func containsPair(argv []string, flag, value string) bool {
	for i, tok := range argv {
		if tok == flag && i+1 < len(argv) && argv[i+1] == value {
			return true
		}
	}
	return false
}
