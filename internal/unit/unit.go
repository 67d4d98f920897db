// Package unit defines the UnitModel: an immutable description of one
// encodable segment of the input and the commands derived from it.
package unit

import (
	"fmt"
	"path/filepath"
)

// EncoderProfile is the capability object the core consumes instead of
// defining encoder command-line syntax itself (§4.B). Concrete encoders
// (SVT-AV1, x265, ...) implement this interface in their own package.
type EncoderProfile interface {
	// BinaryName is the executable the encode stage of the pipeline spawns.
	BinaryName() string
	// OutputExtension is "ivf" or "mkv", chosen by encoder family.
	OutputExtension() string
	// DefaultPasses is the profile's recommended pass count (1 or 2).
	DefaultPasses() int

	// Compose1Pass, ComposeFirstOfTwo, and ComposeSecondOfTwo build the
	// encoder argv for each pass shape, given the unit's video_params,
	// output path, and exact frame count.
	Compose1Pass(params []string, output string, frameCount int) []string
	ComposeFirstOfTwo(params []string, output string, frameCount int) []string
	ComposeSecondOfTwo(params []string, output string, frameCount int) []string

	// ParseEncodedFrames extracts a progress frame count from one line of
	// the encoder's stderr, or reports ok=false if the line carries no
	// progress information.
	ParseEncodedFrames(line string) (frames int, ok bool)

	// IsQuantizerToken reports whether a video_params token is the
	// encoder's quantizer/CRF flag, so ReplaceQuantizer/InsertQuantizer
	// know which token to operate on.
	IsQuantizerToken(token string) bool
	// ReplaceQuantizer returns params with its quantizer token's value
	// replaced by q, leaving all other tokens untouched.
	ReplaceQuantizer(params []string, q int) []string
	// InsertQuantizer returns params with a quantizer token for q appended,
	// used when params carries no quantizer token to replace.
	InsertQuantizer(params []string, q int) []string

	// FormatBitDepth reports the bit depth (8, 10, or 12) the encoder
	// expects for a given pixel format string.
	FormatBitDepth(pixFmt string) int
}

// InputDescriptor is one of {raw video path, script path + argument map}.
type InputDescriptor struct {
	RawPath    string
	ScriptPath string
	ScriptArgs map[string]string
}

// IsScript reports whether this descriptor names a frame-server script
// rather than a raw video file.
func (d InputDescriptor) IsScript() bool {
	return d.ScriptPath != ""
}

// Unit is immutable once created by the Partitioner; its only permitted
// mutation is assigning ChosenQuantizer, and it is never serialized with
// that field set — the on-disk queue always reflects the post-mutation list.
type Unit struct {
	Index int

	TempDir          string
	InputDescriptor  InputDescriptor
	SourceCommand    []string
	OutputExtension  string
	StartFrame       int
	EndFrame         int
	FrameRateNum     int
	FrameRateDen     int
	Passes           int
	VideoParams      []string
	EncoderProfile   EncoderProfile

	IgnoreFrameMismatch bool
	ChosenQuantizer     *int
}

// Frames returns end_frame - start_frame, the exact count of frames the
// source command will emit.
func (u *Unit) Frames() int {
	return u.EndFrame - u.StartFrame
}

// Name returns the unit's zero-padded index string, used as its ledger key
// and as the stem of its temp-file names.
func (u *Unit) Name() string {
	return fmt.Sprintf("%05d", u.Index)
}

// OutputPath returns temp_dir/encode/<zero-padded index>.<ext>.
func (u *Unit) OutputPath() string {
	return filepath.Join(u.TempDir, "encode", u.Name()+"."+u.OutputExtension)
}

// FirstPassStatsPath returns the two-pass stats file path for this unit,
// keyed by index so concurrent/retried two-pass runs never collide.
func (u *Unit) FirstPassStatsPath() string {
	return filepath.Join(u.TempDir, "encode", u.Name()+".stats")
}

// BuildPassCommand returns the encoder argv for one pass of this unit,
// selecting the 1-pass or 2-pass composer on the profile based on
// u.Passes and passIndex, then applying ChosenQuantizer if set.
func (u *Unit) BuildPassCommand(profile EncoderProfile, passIndex int) []string {
	var argv []string
	switch {
	case u.Passes == 1:
		argv = profile.Compose1Pass(u.VideoParams, u.OutputPath(), u.Frames())
	case passIndex == 1:
		argv = profile.ComposeFirstOfTwo(u.VideoParams, u.FirstPassStatsPath(), u.Frames())
	default:
		argv = profile.ComposeSecondOfTwo(u.VideoParams, u.OutputPath(), u.Frames())
	}

	if u.ChosenQuantizer != nil {
		argv = u.ApplyQuantizer(profile, argv, *u.ChosenQuantizer)
	}
	return argv
}

// Trial returns a copy of u for a QualitySearch probe encode at quantizer:
// single-pass, rooted under a quantizer-specific temp_dir so its output
// never collides with the unit's real encode or with a concurrently probed
// quantizer, and never mutates u itself (chosen_quantizer is fixed only
// once the search terminates).
func (u *Unit) Trial(quantizer int) *Unit {
	trial := *u
	trial.TempDir = filepath.Join(u.TempDir, "probe", fmt.Sprintf("%s-q%d", u.Name(), quantizer))
	trial.Passes = 1
	trial.ChosenQuantizer = &quantizer
	return &trial
}

// ApplyQuantizer returns a new argv with the encoder's quantizer token
// replaced or inserted. Idempotent: applying the same q twice yields the
// same argv both times, since ReplaceQuantizer always targets the single
// existing quantizer token once one is present.
func (u *Unit) ApplyQuantizer(profile EncoderProfile, argv []string, q int) []string {
	for _, tok := range argv {
		if profile.IsQuantizerToken(tok) {
			return profile.ReplaceQuantizer(argv, q)
		}
	}
	return profile.InsertQuantizer(argv, q)
}
