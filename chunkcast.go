// Package chunkcast provides a Go library for parallel, chunked AV1 video
// encoding with SVT-AV1.
//
// Chunkcast splits an input into scenes, encodes them concurrently across a
// worker pool, optionally drives each unit's quantizer toward a target
// quality score, and concatenates the results back into a single output
// file. It is resumable: progress is recorded in a crash-safe ledger so a
// second run against the same temp directory skips completed units.
//
// Basic usage:
//
//	encoder, err := chunkcast.New(
//	    chunkcast.WithTargetQuality(90, 1, 63),
//	    chunkcast.WithWorkers(4),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := encoder.Encode(ctx, "input.mkv", "output/")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Encoded: %s, reduction: %.1f%%\n",
//	    result.OutputFile, result.SizeReductionPercent)
package chunkcast

import (
	"context"
	"fmt"

	"github.com/wrightlab/chunkcast/internal/config"
	"github.com/wrightlab/chunkcast/internal/discovery"
	"github.com/wrightlab/chunkcast/internal/encoderprofile/svtav1"
	"github.com/wrightlab/chunkcast/internal/orchestrator"
	"github.com/wrightlab/chunkcast/internal/probe"
	"github.com/wrightlab/chunkcast/internal/reporter"
	"github.com/wrightlab/chunkcast/internal/scenedetect"
	"github.com/wrightlab/chunkcast/internal/util"
)

// Re-export config enums so callers don't need to import internal/config.
type ChunkExtractionMode = config.ChunkExtractionMode
type ChunkOrderPolicy = config.ChunkOrderPolicy

const (
	ExtractScriptDriven = config.ExtractScriptDriven
	ExtractSelect        = config.ExtractSelect
	ExtractSegment       = config.ExtractSegment
	ExtractHybrid        = config.ExtractHybrid
)

const (
	OrderLongestFirst  = config.OrderLongestFirst
	OrderShortestFirst = config.OrderShortestFirst
	OrderSequential    = config.OrderSequential
	OrderRandom        = config.OrderRandom
	OrderAdaptive      = config.OrderAdaptive
)

// Reporter re-exports the progress reporting interface so callers can supply
// their own sink (terminal, NDJSON, or a custom implementation) without
// importing internal/reporter directly.
type Reporter = reporter.Reporter

// Encoder is the main entry point for chunked video encoding.
type Encoder struct {
	config *config.Config
}

// Result contains the result of a single file encode.
type Result struct {
	OutputFile           string
	OriginalSize         uint64
	EncodedSize          uint64
	SizeReductionPercent float64
}

// Option configures the encoder.
type Option func(*config.Config)

// New creates a new Encoder with the given options.
func New(opts ...Option) (*Encoder, error) {
	cfg := config.NewConfig(".", ".", ".")

	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Encoder{config: cfg}, nil
}

// WithTargetQuality enables QualitySearch: the Broker drives each unit's
// quantizer toward target using QualitySearch, bounded by [minQ, maxQ].
func WithTargetQuality(target float64, minQ, maxQ int) Option {
	return func(c *config.Config) {
		c.TargetQuality = &target
		c.MinQ = minQ
		c.MaxQ = maxQ
	}
}

// WithMaxProbes bounds the number of QualitySearch probe rounds per unit.
func WithMaxProbes(n int) Option {
	return func(c *config.Config) {
		c.MaxProbes = n
	}
}

// WithVideoParams sets the ordered encoder-specific parameter tokens applied
// to every unit before quantizer substitution.
func WithVideoParams(params ...string) Option {
	return func(c *config.Config) {
		c.VideoParams = params
	}
}

// WithPasses sets the number of encoder passes (1 or 2).
func WithPasses(n int) Option {
	return func(c *config.Config) {
		c.Passes = n
	}
}

// WithChunkExtractionMode selects how the Partitioner builds a unit's
// source command.
func WithChunkExtractionMode(m ChunkExtractionMode) Option {
	return func(c *config.Config) {
		c.ChunkExtractionMode = m
	}
}

// WithChunkOrderPolicy selects the order units are dispatched in.
func WithChunkOrderPolicy(p ChunkOrderPolicy) Option {
	return func(c *config.Config) {
		c.ChunkOrderPolicy = p
	}
}

// WithExtraSplitsLen subdivides any scene longer than n frames into roughly
// equal sub-scenes; zero (the default) disables subdivision.
func WithExtraSplitsLen(n int) Option {
	return func(c *config.Config) {
		c.ExtraSplitsLen = n
	}
}

// WithWorkers sets a fixed worker count, replacing the default of 4 from
// config.AutoWorkerCount; the count must be at least 1.
func WithWorkers(n int) Option {
	return func(c *config.Config) {
		c.Workers = n
	}
}

// WithThreadsPerWorker sets the number of logical CPUs per worker used by
// the Broker's worker-count formula. Thread pinning (WithPinThreads) places
// each worker on a single CPU regardless of this value.
func WithThreadsPerWorker(n int) Option {
	return func(c *config.Config) {
		c.ThreadsPerWorker = n
	}
}

// WithPinThreads enables Linux thread-affinity pinning of encoder workers.
func WithPinThreads() Option {
	return func(c *config.Config) {
		c.PinThreads = true
	}
}

// WithMaxTries bounds per-unit retries before the Broker reports a fatal
// failure for that unit.
func WithMaxTries(n int) Option {
	return func(c *config.Config) {
		c.MaxTries = n
	}
}

// WithResume resumes a prior run from the ledger in the given temp directory.
func WithResume(tempDir string) Option {
	return func(c *config.Config) {
		c.TempDir = tempDir
		c.Resume = true
	}
}

// WithKeep retains the temp directory (split/encode trees, ledger) after a
// successful run instead of cleaning it up.
func WithKeep() Option {
	return func(c *config.Config) {
		c.Keep = true
	}
}

// WithIgnoreFrameMismatch downgrades a unit's frame-count mismatch from a
// fatal error to a warning.
func WithIgnoreFrameMismatch() Option {
	return func(c *config.Config) {
		c.IgnoreFrameMismatch = true
	}
}

// EncodeWithReporter encodes a single video file using a custom Reporter,
// giving direct access to every progress event.
func (e *Encoder) EncodeWithReporter(ctx context.Context, input, outputDir string, rep Reporter) (*Result, error) {
	cfg := *e.config
	cfg.InputPath = input
	cfg.OutputDir = outputDir

	if err := util.EnsureDirectory(outputDir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if rep == nil {
		rep = reporter.NullReporter{}
	}

	outputPath, err := orchestrator.Run(ctx, &cfg, orchestrator.Dependencies{
		Probe:          probeAdapter{probe.Service{}},
		SceneDetector:  scenedetect.Detector{},
		EncoderProfile: svtav1.New(),
		Reporter:       rep,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{OutputFile: outputPath}
	origSize, origErr := util.GetFileSize(input)
	encSize, encErr := util.GetFileSize(outputPath)
	if origErr == nil && encErr == nil {
		result.OriginalSize = origSize
		result.EncodedSize = encSize
		result.SizeReductionPercent = util.CalculateSizeReduction(origSize, encSize)
	}
	return result, nil
}

// Encode encodes a single video file, discarding progress events. Use
// EncodeWithReporter to observe progress.
func (e *Encoder) Encode(ctx context.Context, input, outputDir string) (*Result, error) {
	return e.EncodeWithReporter(ctx, input, outputDir, nil)
}

// FindVideos finds video files in a directory.
func FindVideos(dir string) ([]string, error) {
	return discovery.FindVideoFiles(dir)
}

// probeAdapter adapts probe.Service's SourceInfo to orchestrator.SourceInfo.
type probeAdapter struct {
	svc probe.Service
}

func (p probeAdapter) Inspect(ctx context.Context, path string) (orchestrator.SourceInfo, error) {
	info, err := p.svc.Inspect(ctx, path)
	if err != nil {
		return orchestrator.SourceInfo{}, err
	}
	return orchestrator.SourceInfo{
		TotalFrames:  info.TotalFrames,
		Width:        info.Width,
		Height:       info.Height,
		FrameRateNum: info.FrameRateNum,
		FrameRateDen: info.FrameRateDen,
		PixFmt:       info.PixFmt,
	}, nil
}
