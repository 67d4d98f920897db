// Package orchestrator implements the Orchestrator: the top-level sequencer
// that turns a validated Config into a finished output file by driving the
// Partitioner, Broker, and the external collaborators (scene detection,
// audio encode, concat/mux).
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wrightlab/chunkcast/internal/audioenc"
	"github.com/wrightlab/chunkcast/internal/broker"
	"github.com/wrightlab/chunkcast/internal/config"
	"github.com/wrightlab/chunkcast/internal/corerr"
	"github.com/wrightlab/chunkcast/internal/ledger"
	"github.com/wrightlab/chunkcast/internal/mux"
	"github.com/wrightlab/chunkcast/internal/partition"
	"github.com/wrightlab/chunkcast/internal/pipeline"
	"github.com/wrightlab/chunkcast/internal/quality"
	"github.com/wrightlab/chunkcast/internal/reporter"
	"github.com/wrightlab/chunkcast/internal/unit"
	"github.com/wrightlab/chunkcast/internal/validation"
)

// SourceInfo is the subset of ProbeService output the Orchestrator needs to
// plan the encode. Mirrors probe.SourceInfo without importing that package
// directly, so a caller can supply any ProbeService implementation.
type SourceInfo struct {
	TotalFrames  int
	Width        int
	Height       int
	FrameRateNum int
	FrameRateDen int
	PixFmt       string
}

// ProbeService is the external collaborator that inspects the input.
type ProbeService interface {
	Inspect(ctx context.Context, path string) (SourceInfo, error)
}

// SceneDetector is the external collaborator that finds scene boundaries.
type SceneDetector interface {
	Detect(ctx context.Context, inputPath string, totalFrames, fpsNum, fpsDen, width, height int) ([]partition.Scene, error)
}

// Dependencies bundles every external collaborator and encoder profile the
// Orchestrator needs; all fields are required except Reporter (defaults to
// a no-op) and AudioBitrateKbps (defaults to 128).
type Dependencies struct {
	Probe          ProbeService
	SceneDetector  SceneDetector
	EncoderProfile unit.EncoderProfile
	Reporter       reporter.Reporter

	// QualityProbe backs QualitySearch when cfg.TargetQuality is set.
	// Defaults to an ffmpeg/libvmaf trial-encode probe if nil.
	QualityProbe quality.QualityProbe

	AudioBitrateKbps int
}

// Run executes the full sequence described in §4.G against cfg and returns
// the final output path on success.
func Run(ctx context.Context, cfg *config.Config, deps Dependencies) (string, error) {
	if deps.Reporter == nil {
		deps.Reporter = reporter.NullReporter{}
	}
	rep := deps.Reporter

	if err := cfg.Validate(); err != nil {
		return "", corerr.NewConfigError(err.Error())
	}

	tempDir, splitDir, encodeDir, err := createTempTree(cfg.GetTempDir())
	if err != nil {
		return "", corerr.NewIOError("failed to create temp directory tree", err)
	}

	resuming := cfg.Resume
	failed := true
	defer func() {
		if failed || cfg.Keep {
			return
		}
		_ = os.RemoveAll(tempDir)
	}()

	led, err := ledger.Load(filepath.Join(tempDir, ledger.FileName))
	if err != nil {
		return "", corerr.NewIOError("failed to load progress ledger", err)
	}

	scenes, totalFrames, fpsNum, fpsDen, width, height, pixFmt, err := determineScenes(ctx, cfg, deps, tempDir, resuming)
	if err != nil {
		return "", err
	}
	rep.Verbose(fmt.Sprintf("source: %d frames, %dx%d, %d/%d fps, %s", totalFrames, width, height, fpsNum, fpsDen, pixFmt))

	// On resume the persisted queue is reused as-is, so unit indices (and the
	// ledger entries keyed by them) stay stable even under OrderRandom.
	queuePath := filepath.Join(tempDir, partition.QueueFileName)
	var units []*unit.Unit
	if resuming {
		if units, err = partition.Load(queuePath, deps.EncoderProfile); err != nil {
			return "", err
		}
	}
	planOpts := partition.Options{
		TempDir:              tempDir,
		Input:                unit.InputDescriptor{RawPath: cfg.InputPath},
		EncoderProfile:       deps.EncoderProfile,
		Mode:                 cfg.ChunkExtractionMode,
		Order:                cfg.ChunkOrderPolicy,
		VideoParams:          cfg.VideoParams,
		Passes:               cfg.Passes,
		IgnoreFrameMismatch:  cfg.IgnoreFrameMismatch,
		FrameRateNum:         fpsNum,
		FrameRateDen:         fpsDen,
	}
	if units == nil {
		if units, err = partition.Plan(scenes, planOpts, queuePath); err != nil {
			return "", err
		}
	}

	if resuming {
		units = filterCompleted(units, led)
	}

	audioPath := filepath.Join(tempDir, "audio.mkv")
	var audioDone <-chan error
	if !led.AudioDone() {
		audioDone = audioenc.EncodeAsync(ctx, cfg.InputPath, audioPath, deps.AudioBitrateKbps)
	}

	runner := &pipeline.Runner{
		Prober:     probeAdapter{deps.Probe},
		FilterArgs: convertFilterArgs(pixFmt, cfg.OutputPixFmt, deps.EncoderProfile),
	}
	workerCount := cfg.Workers
	if workerCount <= 0 {
		workerCount = broker.WorkerCount(cfg.ThreadsPerWorker, uint32(width), uint32(height))
	}

	var brokerRunner broker.Runner = runner
	var qualityStats *quality.Stats
	if cfg.TargetQuality != nil {
		probe := deps.QualityProbe
		if probe == nil {
			probe = quality.FFmpegVMAFProbe{Runner: runner}
		}
		qualityStats = quality.NewStats()
		brokerRunner = &quality.SearchingRunner{
			Next:      runner,
			Probe:     probe,
			Target:    *cfg.TargetQuality,
			MinQ:      cfg.MinQ,
			MaxQ:      cfg.MaxQ,
			MaxProbes: cfg.MaxProbes,
			Tracker:   quality.NewTracker(),
			Stats:     qualityStats,
		}
	}

	b := broker.New(workerCount, cfg.MaxTries, brokerRunner)
	b.PinThreads = cfg.PinThreads
	b.Adaptive = cfg.ChunkOrderPolicy == config.OrderAdaptive

	rep.Verbose(fmt.Sprintf("dispatching %d units across %d workers", len(units), workerCount))
	outcomes := b.Run(ctx, units)

	if qualityStats != nil {
		qualityStats.Report(rep)
	}

	for _, o := range outcomes {
		if o.Err != nil {
			return "", o.Err
		}
		if err := led.Record(o.Unit.Name(), o.Frames, 0); err != nil {
			return "", corerr.NewIOError("failed to record unit completion", err)
		}
	}

	if audioDone != nil {
		if err := <-audioDone; err != nil {
			return "", err
		}
		if err := led.SetAudioDone(true); err != nil {
			return "", corerr.NewIOError("failed to record audio completion", err)
		}
	}

	outputPaths := make([]string, len(units))
	for i, u := range units {
		outputPaths[i] = u.OutputPath()
	}

	concatListPath, err := mux.WriteConcatList(tempDir, outputPaths)
	if err != nil {
		return "", err
	}

	videoOnlyPath := filepath.Join(tempDir, "video.mkv")
	if err := mux.ConcatVideo(ctx, concatListPath, videoOnlyPath); err != nil {
		return "", err
	}

	outputPath := filepath.Join(cfg.OutputDir, filepath.Base(cfg.InputPath))
	if err := mux.Mux(ctx, videoOnlyPath, audioPath, outputPath); err != nil {
		return "", err
	}

	validateOutput(rep, outputPath, totalFrames, fpsNum, fpsDen, width, height)

	_ = splitDir
	_ = encodeDir
	failed = false
	return outputPath, nil
}

// validateOutput runs a post-mux sanity check against the source's expected
// duration, resolution, and audio track count, reporting failures as
// warnings rather than aborting the run: a chunked re-encode that otherwise
// completed successfully shouldn't be thrown away over a validation mismatch
// the operator can inspect directly. The concat/mux stages never resize or
// drop the single audioenc-produced Opus track, so dimensions and track
// count are exact expectations, not estimates.
func validateOutput(rep reporter.Reporter, outputPath string, totalFrames, fpsNum, fpsDen, width, height int) {
	if fpsNum == 0 || fpsDen == 0 {
		return
	}
	expectedDuration := float64(totalFrames) * float64(fpsDen) / float64(fpsNum)
	expectedDims := [2]uint32{uint32(width), uint32(height)}
	expectedAudioTracks := 1

	result, err := validation.ValidateOutputVideo(outputPath, outputPath, validation.Options{
		ExpectedDuration:    &expectedDuration,
		ExpectedDimensions:  &expectedDims,
		ExpectedAudioTracks: &expectedAudioTracks,
	})
	if err != nil {
		rep.Warning(fmt.Sprintf("post-encode validation skipped: %v", err))
		return
	}
	if !result.IsValid() {
		for _, failure := range result.GetFailures() {
			rep.Warning(fmt.Sprintf("post-encode validation: %s", failure))
		}
	}
}

func createTempTree(base string) (tempDir, splitDir, encodeDir string, err error) {
	tempDir = filepath.Join(base, "temp")
	splitDir = filepath.Join(tempDir, "split")
	encodeDir = filepath.Join(tempDir, "encode")
	for _, d := range []string{tempDir, splitDir, encodeDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return "", "", "", err
		}
	}
	return tempDir, splitDir, encodeDir, nil
}

func determineScenes(ctx context.Context, cfg *config.Config, deps Dependencies, tempDir string, resuming bool) (scenes []partition.Scene, totalFrames, fpsNum, fpsDen, width, height int, pixFmt string, err error) {
	scenesPath := filepath.Join(tempDir, partition.ScenesFileName)

	if resuming {
		if loaded, total, loadErr := partition.LoadScenesFile(scenesPath); loadErr == nil && loaded != nil {
			info, infoErr := deps.Probe.Inspect(ctx, cfg.InputPath)
			if infoErr != nil {
				return nil, 0, 0, 0, 0, 0, "", infoErr
			}
			return loaded, total, info.FrameRateNum, info.FrameRateDen, info.Width, info.Height, info.PixFmt, nil
		}
	}

	info, err := deps.Probe.Inspect(ctx, cfg.InputPath)
	if err != nil {
		return nil, 0, 0, 0, 0, 0, "", err
	}

	scenes, err = deps.SceneDetector.Detect(ctx, cfg.InputPath, info.TotalFrames, info.FrameRateNum, info.FrameRateDen, info.Width, info.Height)
	if err != nil {
		return nil, 0, 0, 0, 0, 0, "", err
	}

	if cfg.ExtraSplitsLen > 0 {
		scenes = partition.SubdivideOversized(scenes, cfg.ExtraSplitsLen)
	}

	if err := partition.SaveScenesFile(scenesPath, scenes, info.TotalFrames); err != nil {
		return nil, 0, 0, 0, 0, 0, "", err
	}

	return scenes, info.TotalFrames, info.FrameRateNum, info.FrameRateDen, info.Width, info.Height, info.PixFmt, nil
}

// convertFilterArgs decides whether PipelineRunner's convert stage needs to
// run and, if so, returns the ffmpeg -vf value that normalizes the source's
// native pixel format to cfg.OutputPixFmt (§4.D step 2). Identical pix_fmt
// strings never need conversion; otherwise the decision turns on whether the
// encoder profile reports a different bit depth for the two formats, the
// purpose EncoderProfile.FormatBitDepth exists for.
func convertFilterArgs(sourcePixFmt, outputPixFmt string, profile unit.EncoderProfile) string {
	if sourcePixFmt == "" || outputPixFmt == "" || sourcePixFmt == outputPixFmt {
		return ""
	}
	if profile != nil && profile.FormatBitDepth(sourcePixFmt) == profile.FormatBitDepth(outputPixFmt) {
		return ""
	}
	return fmt.Sprintf("format=%s", outputPixFmt)
}

func filterCompleted(units []*unit.Unit, led *ledger.Ledger) []*unit.Unit {
	remaining := make([]*unit.Unit, 0, len(units))
	for _, u := range units {
		if led.Contains(u.Name()) {
			continue
		}
		remaining = append(remaining, u)
	}
	return remaining
}

// probeAdapter satisfies pipeline.FrameProber using the Orchestrator's wider
// ProbeService, since the final-pass mismatch check only needs frame counts.
type probeAdapter struct {
	svc ProbeService
}

func (p probeAdapter) CountFrames(ctx context.Context, path string) (int, error) {
	info, err := p.svc.Inspect(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.TotalFrames, nil
}
