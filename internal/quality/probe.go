package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/wrightlab/chunkcast/internal/corerr"
	"github.com/wrightlab/chunkcast/internal/pipeline"
	"github.com/wrightlab/chunkcast/internal/unit"
)

// vmafLog mirrors the JSON libvmaf's log_fmt=json writes: one score per
// decoded frame, which FFmpegVMAFProbe averages into a single scalar.
type vmafLog struct {
	Frames []struct {
		Metrics struct {
			VMAF float64 `json:"vmaf"`
		} `json:"metrics"`
	} `json:"frames"`
}

// FFmpegVMAFProbe implements QualityProbe with a short trial encode (via
// the same PipelineRunner every real pass uses) followed by an ffmpeg
// libvmaf comparison against the unit's source, the way a CLI-driven VMAF
// tool compares a trial encode to its reference without linking libvmaf
// directly: one ffmpeg invocation, a JSON log on disk, averaged.
type FFmpegVMAFProbe struct {
	Runner *pipeline.Runner
}

// Score implements QualityProbe.
func (p FFmpegVMAFProbe) Score(ctx context.Context, u *unit.Unit, quantizer int) (float64, error) {
	trial := u.Trial(quantizer)
	if err := os.MkdirAll(filepath.Join(trial.TempDir, "encode"), 0o755); err != nil {
		return 0, corerr.NewIOError("failed to create probe directory", err)
	}
	defer os.RemoveAll(trial.TempDir)

	if err := p.Runner.Run(ctx, trial, 1, nil); err != nil {
		return 0, err
	}

	return p.measureVMAF(ctx, trial)
}

// measureVMAF pipes the unit's source command into ffmpeg as the reference
// stream and compares it against the trial's encoded output, reading the
// mean score back out of libvmaf's JSON log.
func (p FFmpegVMAFProbe) measureVMAF(ctx context.Context, trial *unit.Unit) (float64, error) {
	logPath := filepath.Join(trial.TempDir, "vmaf.json")

	refCmd := exec.CommandContext(ctx, trial.SourceCommand[0], trial.SourceCommand[1:]...)
	refOut, err := refCmd.StdoutPipe()
	if err != nil {
		return 0, corerr.NewCommandStartError("probe reference decode", err)
	}

	filter := fmt.Sprintf("[0:v][1:v]libvmaf=log_fmt=json:log_path=%s", logPath)
	vmafCmd := exec.CommandContext(ctx, "ffmpeg",
		"-nostdin", "-y",
		"-i", trial.OutputPath(),
		"-f", "yuv4mpegpipe", "-i", "pipe:0",
		"-lavfi", filter,
		"-f", "null", "-",
	)
	vmafCmd.Stdin = refOut

	if err := refCmd.Start(); err != nil {
		return 0, corerr.NewCommandStartError("probe reference decode", err)
	}
	if err := vmafCmd.Run(); err != nil {
		_ = refCmd.Wait()
		return 0, corerr.NewCommandStartError("ffmpeg libvmaf", err)
	}
	if err := refCmd.Wait(); err != nil {
		return 0, corerr.NewOperationFailedError("probe reference decode failed", err)
	}

	return meanVMAFScore(logPath)
}

func meanVMAFScore(logPath string) (float64, error) {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return 0, corerr.NewIOError("failed to read vmaf log", err)
	}

	var log vmafLog
	if err := json.Unmarshal(data, &log); err != nil {
		return 0, corerr.NewJSONParseError("failed to parse vmaf log", err)
	}
	if len(log.Frames) == 0 {
		return 0, corerr.NewOperationFailedError("vmaf log contained no frames", nil)
	}

	var sum float64
	for _, f := range log.Frames {
		sum += f.Metrics.VMAF
	}
	return sum / float64(len(log.Frames)), nil
}
