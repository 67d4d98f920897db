// Package config provides configuration types and defaults for chunkcast.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
)

// ChunkExtractionMode selects how the Partitioner builds a unit's source_command.
type ChunkExtractionMode int

const (
	// ExtractScriptDriven runs a script-interpreter command (lsmash/ffms2/dgdecnv/bestsource)
	// parameterized with -s start -e end-1, producing Y4M on stdout.
	ExtractScriptDriven ChunkExtractionMode = iota
	// ExtractSelect emits an ffmpeg select=between(n,start,end-1) + setpts filter.
	ExtractSelect
	// ExtractSegment decodes a per-unit intermediate file under
	// temp_dir/segments; nothing in this repository writes those files.
	ExtractSegment
	// ExtractHybrid builds the same ffmpeg select command as ExtractSelect;
	// no key-frame pre-segmentation is performed.
	ExtractHybrid
)

func (m ChunkExtractionMode) String() string {
	switch m {
	case ExtractScriptDriven:
		return "script-driven"
	case ExtractSelect:
		return "select"
	case ExtractSegment:
		return "segment"
	case ExtractHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// ParseChunkExtractionMode parses one of "script-driven", "select", "segment", "hybrid".
func ParseChunkExtractionMode(s string) (ChunkExtractionMode, error) {
	switch s {
	case "script-driven":
		return ExtractScriptDriven, nil
	case "select":
		return ExtractSelect, nil
	case "segment":
		return ExtractSegment, nil
	case "hybrid":
		return ExtractHybrid, nil
	default:
		return 0, fmt.Errorf("unknown chunk extraction mode %q", s)
	}
}

// ChunkOrderPolicy selects the order in which units are dequeued by the Broker.
type ChunkOrderPolicy int

const (
	// OrderLongestFirst dispatches the longest (by frame count) units first.
	OrderLongestFirst ChunkOrderPolicy = iota
	// OrderShortestFirst dispatches the shortest units first.
	OrderShortestFirst
	// OrderSequential preserves scene order.
	OrderSequential
	// OrderRandom shuffles with an implementation-defined seed; the realized
	// order is captured in the persisted queue so resume is deterministic.
	OrderRandom
	// OrderAdaptive dispatches the unit nearest a recently-completed unit,
	// an expansion beyond the four core policies.
	OrderAdaptive
)

func (p ChunkOrderPolicy) String() string {
	switch p {
	case OrderLongestFirst:
		return "longest-first"
	case OrderShortestFirst:
		return "shortest-first"
	case OrderSequential:
		return "sequential"
	case OrderRandom:
		return "random"
	case OrderAdaptive:
		return "adaptive"
	default:
		return "unknown"
	}
}

// ParseChunkOrderPolicy parses one of "longest-first", "shortest-first",
// "sequential", "random", "adaptive".
func ParseChunkOrderPolicy(s string) (ChunkOrderPolicy, error) {
	switch s {
	case "longest-first":
		return OrderLongestFirst, nil
	case "shortest-first":
		return OrderShortestFirst, nil
	case "sequential":
		return OrderSequential, nil
	case "random":
		return OrderRandom, nil
	case "adaptive":
		return OrderAdaptive, nil
	default:
		return 0, fmt.Errorf("unknown chunk order policy %q", s)
	}
}

// Default constants.
const (
	// DefaultThreadsPerWorker is the default number of logical CPUs per
	// encoder worker in the Broker's WorkerCount formula. Thread-affinity
	// pinning does not use it: each pinned worker gets a single CPU.
	DefaultThreadsPerWorker int = 2

	// DefaultMaxProbes bounds the number of QualitySearch probe rounds per unit.
	DefaultMaxProbes int = 6

	// DefaultMaxTries bounds PipelineRunner retries per unit before the
	// broker reports a fatal failure.
	DefaultMaxTries int = 3

	// DefaultExtraSplitsLen is the frame-count threshold above which a scene
	// is subdivided into roughly equal sub-scenes; zero disables subdivision.
	DefaultExtraSplitsLen int = 0

	// DefaultMinQ and DefaultMaxQ bound the quantizer search range.
	DefaultMinQ int = 1
	DefaultMaxQ int = 63

	// DefaultOutputPixFmt is the pixel format PipelineRunner's convert stage
	// targets when the source's native format differs, matching SVT-AV1's
	// --input-depth 10 expectation (§4.D step 2).
	DefaultOutputPixFmt string = "yuv420p10le"

	// QualityTolerancePercent is the fixed relative tolerance (of target) used
	// by QualitySearch to decide convergence.
	QualityTolerancePercent float64 = 1.0
)

// Config holds all configuration for a chunkcast run.
type Config struct {
	// Input/output paths
	InputPath string
	OutputDir string
	LogDir    string
	TempDir   string // optional, defaults to OutputDir/chunkcast-<uuid>

	// Encoder-agnostic encode parameters
	EncoderBinary string   // not read by the pipeline, which runs EncoderProfile.BinaryName()
	VideoParams   []string // ordered encoder-specific tokens
	Passes        int      // 1 or 2
	OutputPixFmt  string   // convert-stage target pixel format (§4.D step 2)

	// Partitioning
	ChunkExtractionMode ChunkExtractionMode
	ChunkOrderPolicy    ChunkOrderPolicy
	ExtraSplitsLen      int // 0 disables subdivision

	// Target quality (nil disables QualitySearch; the unit keeps video_params' quantizer)
	TargetQuality *float64
	MinQ          int
	MaxQ          int
	MaxProbes     int

	// Broker / worker pool
	Workers          int
	ThreadsPerWorker int
	PinThreads       bool
	MaxTries         int

	// Resume / cleanup
	Resume              bool
	Keep                bool
	IgnoreFrameMismatch bool

	// Debug options
	Verbose bool
}

// NewConfig creates a new Config with default values for the given input/output/log paths.
func NewConfig(inputPath, outputDir, logDir string) *Config {
	return &Config{
		InputPath:           inputPath,
		OutputDir:           outputDir,
		LogDir:              logDir,
		ChunkExtractionMode: ExtractScriptDriven,
		ChunkOrderPolicy:    OrderLongestFirst,
		ExtraSplitsLen:      DefaultExtraSplitsLen,
		MinQ:                DefaultMinQ,
		MaxQ:                DefaultMaxQ,
		MaxProbes:           DefaultMaxProbes,
		Workers:             AutoWorkerCount(),
		ThreadsPerWorker:    DefaultThreadsPerWorker,
		MaxTries:            DefaultMaxTries,
		Passes:              1,
		OutputPixFmt:        DefaultOutputPixFmt,
	}
}

// AutoWorkerCount returns the fixed default worker count of 4; it does not
// look at host CPU, RAM or resolution. Validate rejects a worker count below
// 1, so the Broker's resource-aware WorkerCount is not applied to a
// validated Config.
func AutoWorkerCount() int {
	return 4
}

// ParseTargetQuality parses a single scalar target score such as "90"; the
// quantizer range is set separately through MinQ/MaxQ.
func ParseTargetQuality(s string) (float64, error) {
	var target float64
	if _, err := fmt.Sscanf(s, "%g", &target); err != nil {
		return 0, fmt.Errorf("invalid target quality %q: %w", s, err)
	}
	return target, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return fmt.Errorf("input path must be set")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory must be set")
	}

	if c.Passes != 1 && c.Passes != 2 {
		return fmt.Errorf("passes must be 1 or 2, got %d", c.Passes)
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.ThreadsPerWorker < 1 {
		return fmt.Errorf("threads_per_worker must be at least 1, got %d", c.ThreadsPerWorker)
	}
	if c.MaxTries < 1 {
		return fmt.Errorf("max_tries must be at least 1, got %d", c.MaxTries)
	}

	if c.ExtraSplitsLen < 0 {
		return fmt.Errorf("extra_splits_len must be non-negative, got %d", c.ExtraSplitsLen)
	}

	if c.TargetQuality != nil {
		if c.MaxProbes < 1 {
			return fmt.Errorf("max_probes must be at least 1 when target quality is set, got %d", c.MaxProbes)
		}
		if c.MinQ < 0 || c.MaxQ > 255 || c.MinQ >= c.MaxQ {
			return fmt.Errorf("quantizer range invalid: min_q=%d max_q=%d", c.MinQ, c.MaxQ)
		}
		if *c.TargetQuality <= 0 {
			return fmt.Errorf("target_quality must be positive, got %g", *c.TargetQuality)
		}
	}

	return nil
}

// GetTempDir returns the configured temp directory. When unset, it lazily
// generates and caches a per-run directory name under OutputDir so
// concurrent runs against the same output directory never collide, the way
// a resumable chunk-level run needs a stable, run-specific home for its
// ledger and split/encode trees; the name is cached on first call so
// repeated calls within the same run agree.
func (c *Config) GetTempDir() string {
	if c.TempDir == "" {
		c.TempDir = filepath.Join(c.OutputDir, "chunkcast-"+uuid.NewString())
	}
	return c.TempDir
}
