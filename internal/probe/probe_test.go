package probe

import "testing"

func TestParseFrameRate(t *testing.T) {
	cases := []struct {
		in       string
		wantNum  int
		wantDen  int
	}{
		{"24000/1001", 24000, 1001},
		{"25/1", 25, 1},
		{"30", 30, 1},
		{"", 0, 0},
	}
	for _, c := range cases {
		num, den := parseFrameRate(c.in)
		if num != c.wantNum || den != c.wantDen {
			t.Errorf("parseFrameRate(%q) = %d/%d, want %d/%d", c.in, num, den, c.wantNum, c.wantDen)
		}
	}
}
