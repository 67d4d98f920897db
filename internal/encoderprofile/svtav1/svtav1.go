// Package svtav1 implements unit.EncoderProfile for SvtAv1EncApp, the
// concrete encoder this repository ships by default. The core never
// imports this package directly; it is wired in at the command-line
// front end (§1 "does not define encoder command-line syntax").
package svtav1

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// BinaryName is the SVT-AV1 executable name.
const BinaryName = "SvtAv1EncApp"

// Profile implements unit.EncoderProfile for SvtAv1EncApp.
type Profile struct{}

// New returns an SVT-AV1 profile.
func New() Profile {
	return Profile{}
}

func (Profile) BinaryName() string     { return BinaryName }
func (Profile) OutputExtension() string { return "ivf" }
func (Profile) DefaultPasses() int     { return 1 }

func (p Profile) Compose1Pass(params []string, output string, frameCount int) []string {
	args := append([]string{"-i", "stdin", "--passes", "1", "--frames", strconv.Itoa(frameCount)}, params...)
	return append(args, "-b", output)
}

func (p Profile) ComposeFirstOfTwo(params []string, statsOutput string, frameCount int) []string {
	args := append([]string{
		"-i", "stdin",
		"--passes", "2", "--pass", "1",
		"--stats", statsOutput,
		"--frames", strconv.Itoa(frameCount),
	}, params...)
	return args
}

func (p Profile) ComposeSecondOfTwo(params []string, output string, frameCount int) []string {
	statsPath := strings.TrimSuffix(output, "."+p.OutputExtension()) + ".stats"
	args := append([]string{
		"-i", "stdin",
		"--passes", "2", "--pass", "2",
		"--stats", statsPath,
		"--frames", strconv.Itoa(frameCount),
	}, params...)
	return append(args, "-b", output)
}

// progressLine matches SvtAv1EncApp's --progress 2 stderr format, e.g.
// "Encoding frame   42  12.34 kbps  23.45 fps".
var progressLine = regexp.MustCompile(`(?i)^\s*(?:encoding\s+)?frame\s+(\d+)\b`)

func (Profile) ParseEncodedFrames(line string) (int, bool) {
	m := progressLine.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func (Profile) IsQuantizerToken(token string) bool {
	return token == "--crf" || token == "--qp"
}

func (p Profile) ReplaceQuantizer(params []string, q int) []string {
	out := make([]string, len(params))
	copy(out, params)
	for i, tok := range out {
		if p.IsQuantizerToken(tok) && i+1 < len(out) {
			out[i+1] = strconv.Itoa(q)
			return out
		}
	}
	return p.InsertQuantizer(out, q)
}

func (Profile) InsertQuantizer(params []string, q int) []string {
	out := make([]string, len(params), len(params)+2)
	copy(out, params)
	return append(out, "--crf", strconv.Itoa(q))
}

func (Profile) FormatBitDepth(pixFmt string) int {
	switch {
	case strings.Contains(pixFmt, "p10"), strings.Contains(pixFmt, "10le"), strings.Contains(pixFmt, "10be"):
		return 10
	case strings.Contains(pixFmt, "p12"), strings.Contains(pixFmt, "12le"), strings.Contains(pixFmt, "12be"):
		return 12
	default:
		return 8
	}
}

// BuildVideoParams assembles the ordered video_params token sequence from
// drapto-style quality knobs, grounded on the teacher's buildSvtArgs.
func BuildVideoParams(preset, tune uint8, acBias float32, fpsNum, fpsDen uint32, width, height uint32, enableVarianceBoost bool, varianceBoostStrength, varianceOctile uint8, lp int) []string {
	keyintFrames := int(float64(fpsNum) / float64(fpsDen) * 10)

	args := []string{
		"--input-depth", "10",
		"--color-format", "1",
		"--profile", "0",
		"--tile-rows", "0",
		"--tile-columns", "0",
		"--width", fmt.Sprintf("%d", width),
		"--height", fmt.Sprintf("%d", height),
		"--fps-num", fmt.Sprintf("%d", fpsNum),
		"--fps-denom", fmt.Sprintf("%d", fpsDen),
		"--keyint", fmt.Sprintf("%d", keyintFrames),
		"--rc", "0",
		"--scd", "1",
		"--scm", "0",
		"--progress", "2",
		"--preset", fmt.Sprintf("%d", preset),
		"--tune", fmt.Sprintf("%d", tune),
	}

	if lp > 0 {
		args = append(args, "--lp", fmt.Sprintf("%d", lp))
	}
	if acBias != 0 {
		args = append(args, "--ac-bias", fmt.Sprintf("%.2f", acBias))
	}
	if enableVarianceBoost {
		args = append(args, "--enable-variance-boost", "1",
			"--variance-boost-strength", fmt.Sprintf("%d", varianceBoostStrength),
			"--variance-octile", fmt.Sprintf("%d", varianceOctile))
	}

	return args
}
