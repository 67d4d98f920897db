// Package partition implements the Partitioner: it turns scene boundaries
// plus input metadata into an ordered queue of unit.Unit values, and
// persists that queue so resume replays the identical plan.
package partition

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"

	"github.com/wrightlab/chunkcast/internal/config"
	"github.com/wrightlab/chunkcast/internal/corerr"
	"github.com/wrightlab/chunkcast/internal/unit"
)

// QueueFileName is the persisted planned-unit-list file within a run's temp dir.
const QueueFileName = "chunks.json"

// Options configures a single Plan call.
type Options struct {
	TempDir             string
	Input               unit.InputDescriptor
	EncoderProfile      unit.EncoderProfile
	Mode                config.ChunkExtractionMode
	Order               config.ChunkOrderPolicy
	VideoParams         []string
	Passes              int
	IgnoreFrameMismatch bool
	FrameRateNum        int
	FrameRateDen        int
	// ScriptInterpreter names the script-interpreter binary for
	// script-driven extraction (e.g. "vspipe"); ignored for other modes.
	ScriptInterpreter string
}

// Plan builds units from scenes and persists the queue to path. Callers
// resuming a run should use Load instead and skip Plan entirely (§4.C step 1).
func Plan(scenes []Scene, opts Options, path string) ([]*unit.Unit, error) {
	if len(scenes) == 0 {
		return nil, corerr.NewOperationFailedError("partition: no scenes to plan", nil)
	}

	units := make([]*unit.Unit, 0, len(scenes))
	for _, sc := range scenes {
		u := &unit.Unit{
			TempDir:             opts.TempDir,
			InputDescriptor:     opts.Input,
			OutputExtension:     opts.EncoderProfile.OutputExtension(),
			StartFrame:          sc.Start,
			EndFrame:            sc.End,
			FrameRateNum:        opts.FrameRateNum,
			FrameRateDen:        opts.FrameRateDen,
			Passes:              opts.Passes,
			VideoParams:         opts.VideoParams,
			EncoderProfile:      opts.EncoderProfile,
			IgnoreFrameMismatch: opts.IgnoreFrameMismatch,
		}
		u.SourceCommand = buildSourceCommand(opts, sc)
		units = append(units, u)
	}

	units = reorder(units, opts.Order)
	for i, u := range units {
		u.Index = i
	}

	if err := Save(path, units); err != nil {
		return nil, err
	}
	return units, nil
}

// buildSourceCommand builds the argv that produces a Y4M byte stream on
// stdout for one unit's frame range, per the extraction mode (§4.C step 2).
func buildSourceCommand(opts Options, sc Scene) []string {
	start := sc.Start
	end := sc.End - 1

	switch opts.Mode {
	case config.ExtractScriptDriven:
		interp := opts.ScriptInterpreter
		if interp == "" {
			interp = "vspipe"
		}
		args := []string{interp, opts.Input.ScriptPath, "-s", fmt.Sprintf("%d", start), "-e", fmt.Sprintf("%d", end), "-", "-c", "y4m"}
		return args

	case config.ExtractSelect, config.ExtractHybrid:
		filter := fmt.Sprintf("select='between(n\\,%d\\,%d)',setpts=PTS-STARTPTS", start, end)
		return []string{"ffmpeg", "-nostdin", "-i", opts.Input.RawPath, "-vf", filter, "-f", "yuv4mpegpipe", "-"}

	case config.ExtractSegment:
		// The pipeline's source stage decodes a per-unit intermediate file
		// under temp_dir/segments; nothing in this repository writes it.
		return []string{"ffmpeg", "-nostdin", "-i", segmentPath(opts.TempDir, sc), "-f", "yuv4mpegpipe", "-"}

	default:
		return []string{"ffmpeg", "-nostdin", "-i", opts.Input.RawPath, "-f", "yuv4mpegpipe", "-"}
	}
}

func segmentPath(tempDir string, sc Scene) string {
	return tempDir + "/segments/" + fmt.Sprintf("%08d-%08d.mkv", sc.Start, sc.End)
}

// reorder assigns dense indices per the configured static policy (§4.C step
// 3). OrderAdaptive is not a static reordering — it leaves Sequential order
// here and is applied dynamically by the broker's dispatcher instead, since
// its ranking depends on runtime completion state that does not exist at
// plan time.
func reorder(units []*unit.Unit, policy config.ChunkOrderPolicy) []*unit.Unit {
	out := make([]*unit.Unit, len(units))
	copy(out, units)

	switch policy {
	case config.OrderLongestFirst:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Frames() > out[j].Frames() })
	case config.OrderShortestFirst:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Frames() < out[j].Frames() })
	case config.OrderRandom:
		rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	case config.OrderSequential, config.OrderAdaptive:
		// already in scene order
	}
	return out
}

// record is the serializable on-disk shape of a Unit. ChosenQuantizer is
// deliberately omitted: the queue file is never serialized with mutable
// fields (§3 "Unit lifecycle").
type record struct {
	Index               int               `json:"index"`
	TempDir             string            `json:"temp_dir"`
	InputRawPath        string            `json:"input_raw_path,omitempty"`
	InputScriptPath     string            `json:"input_script_path,omitempty"`
	InputScriptArgs     map[string]string `json:"input_script_args,omitempty"`
	SourceCommand       []string          `json:"source_command"`
	OutputExtension     string            `json:"output_extension"`
	StartFrame          int               `json:"start_frame"`
	EndFrame            int               `json:"end_frame"`
	FrameRateNum        int               `json:"frame_rate_num"`
	FrameRateDen        int               `json:"frame_rate_den"`
	Passes              int               `json:"passes"`
	VideoParams         []string          `json:"video_params"`
	IgnoreFrameMismatch bool              `json:"ignore_frame_mismatch"`
}

// Save persists units to path as the QueueFile.
func Save(path string, units []*unit.Unit) error {
	records := make([]record, len(units))
	for i, u := range units {
		records[i] = record{
			Index:               u.Index,
			TempDir:             u.TempDir,
			InputRawPath:        u.InputDescriptor.RawPath,
			InputScriptPath:     u.InputDescriptor.ScriptPath,
			InputScriptArgs:     u.InputDescriptor.ScriptArgs,
			SourceCommand:       u.SourceCommand,
			OutputExtension:     u.OutputExtension,
			StartFrame:          u.StartFrame,
			EndFrame:            u.EndFrame,
			FrameRateNum:        u.FrameRateNum,
			FrameRateDen:        u.FrameRateDen,
			Passes:              u.Passes,
			VideoParams:         u.VideoParams,
			IgnoreFrameMismatch: u.IgnoreFrameMismatch,
		}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return corerr.NewJSONParseError("failed to marshal queue", err)
	}
	return atomicWrite(path, data)
}

// Load reads a previously persisted queue verbatim, reattaching profile
// since capability objects are never serialized. Returns (nil, nil) if the
// file does not exist.
func Load(path string, profile unit.EncoderProfile) ([]*unit.Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, corerr.NewIOError("failed to read queue file", err)
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, corerr.NewJSONParseError("failed to parse queue file", err)
	}

	units := make([]*unit.Unit, len(records))
	for i, r := range records {
		units[i] = &unit.Unit{
			Index:   r.Index,
			TempDir: r.TempDir,
			InputDescriptor: unit.InputDescriptor{
				RawPath:    r.InputRawPath,
				ScriptPath: r.InputScriptPath,
				ScriptArgs: r.InputScriptArgs,
			},
			SourceCommand:       r.SourceCommand,
			OutputExtension:     r.OutputExtension,
			StartFrame:          r.StartFrame,
			EndFrame:            r.EndFrame,
			FrameRateNum:        r.FrameRateNum,
			FrameRateDen:        r.FrameRateDen,
			Passes:              r.Passes,
			VideoParams:         r.VideoParams,
			EncoderProfile:      profile,
			IgnoreFrameMismatch: r.IgnoreFrameMismatch,
		}
	}
	return units, nil
}
