// Package main provides the CLI entry point for chunkcast.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wrightlab/chunkcast/internal/broker"
	"github.com/wrightlab/chunkcast/internal/config"
	"github.com/wrightlab/chunkcast/internal/discovery"
	"github.com/wrightlab/chunkcast/internal/encoderprofile/svtav1"
	"github.com/wrightlab/chunkcast/internal/logging"
	"github.com/wrightlab/chunkcast/internal/orchestrator"
	"github.com/wrightlab/chunkcast/internal/probe"
	"github.com/wrightlab/chunkcast/internal/reporter"
	"github.com/wrightlab/chunkcast/internal/scenedetect"
	"github.com/wrightlab/chunkcast/internal/util"
)

const appVersion = "0.1.0"

// encodeFlags holds the parsed flags shared by the encode and resume commands.
type encodeFlags struct {
	input            string
	output           string
	logDir           string
	verbose          bool
	noLog            bool
	targetQuality    float64
	minQ, maxQ       int
	maxProbes        int
	workers          int
	threadsPerWorker int
	pinThreads       bool
	maxTries         int
	extraSplitsLen   int
	keep             bool
	mode             string
	order            string
	resumeDir        string
}

func main() {
	root := &cobra.Command{
		Use:   "chunkcast",
		Short: "Parallel, chunked AV1 video encoding",
	}

	root.AddCommand(newEncodeCmd(), newResumeCmd(), newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("chunkcast version %s\n", appVersion)
			return nil
		},
	}
}

func newEncodeCmd() *cobra.Command {
	var f encodeFlags
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a video file or every video file in a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(f)
		},
	}
	bindEncodeFlags(cmd, &f)
	return cmd
}

func newResumeCmd() *cobra.Command {
	var f encodeFlags
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume an interrupted encode from its temp directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.resumeDir == "" {
				return fmt.Errorf("--temp-dir is required to resume")
			}
			return runEncode(f)
		},
	}
	bindEncodeFlags(cmd, &f)
	cmd.Flags().StringVar(&f.resumeDir, "temp-dir", "", "temp directory from the interrupted run (required)")
	return cmd
}

func bindEncodeFlags(cmd *cobra.Command, f *encodeFlags) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "input video file or directory (required)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output directory (required)")
	cmd.Flags().StringVarP(&f.logDir, "log-dir", "l", "", "log directory (defaults to ~/.local/state/chunkcast/logs)")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "enable verbose output")
	cmd.Flags().BoolVar(&f.noLog, "no-log", false, "disable log file creation")

	cmd.Flags().Float64Var(&f.targetQuality, "target-quality", 0, "target quality score; 0 disables QualitySearch")
	cmd.Flags().IntVar(&f.minQ, "min-q", config.DefaultMinQ, "lower quantizer bound for QualitySearch")
	cmd.Flags().IntVar(&f.maxQ, "max-q", config.DefaultMaxQ, "upper quantizer bound for QualitySearch")
	cmd.Flags().IntVar(&f.maxProbes, "max-probes", config.DefaultMaxProbes, "max QualitySearch probe rounds per unit")

	cmd.Flags().IntVar(&f.workers, "workers", 0, "fixed worker count; 0 keeps the default of 4")
	cmd.Flags().IntVar(&f.threadsPerWorker, "threads-per-worker", config.DefaultThreadsPerWorker, "logical CPUs per worker in the worker-count formula")
	cmd.Flags().BoolVar(&f.pinThreads, "pin-threads", false, "pin encoder workers to CPU cores (Linux only)")
	cmd.Flags().IntVar(&f.maxTries, "max-tries", config.DefaultMaxTries, "per-unit retry budget")

	cmd.Flags().IntVar(&f.extraSplitsLen, "extra-splits-len", config.DefaultExtraSplitsLen, "subdivide scenes longer than this many frames; 0 disables")
	cmd.Flags().BoolVar(&f.keep, "keep", false, "keep the temp directory after a successful run")
	cmd.Flags().StringVar(&f.mode, "mode", "script-driven", "chunk extraction mode: script-driven, select, segment, hybrid")
	cmd.Flags().StringVar(&f.order, "order", "longest-first", "chunk order policy: longest-first, shortest-first, sequential, random, adaptive")

	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
}

func runEncode(f encodeFlags) error {
	inputPath, err := filepath.Abs(f.input)
	if err != nil {
		return fmt.Errorf("invalid input path: %w", err)
	}
	inputInfo, err := os.Stat(inputPath)
	if err != nil {
		return fmt.Errorf("input path does not exist: %s", inputPath)
	}

	outputDir, err := filepath.Abs(f.output)
	if err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	if err := util.EnsureDirectory(outputDir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	logDir := f.logDir
	if logDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		logDir = filepath.Join(homeDir, ".local", "state", "chunkcast", "logs")
	}

	logger, err := logging.Setup(logDir, f.verbose, f.noLog)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if logger != nil {
		defer func() { _ = logger.Close() }()
	}

	var inputs []string
	if inputInfo.IsDir() {
		inputs, err = discovery.FindVideoFiles(inputPath)
		if err != nil {
			return fmt.Errorf("failed to discover video files: %w", err)
		}
		if logger != nil {
			logger.Info("discovered %d video files in %s", len(inputs), inputPath)
		}
	} else {
		inputs = []string{inputPath}
	}

	mode, err := config.ParseChunkExtractionMode(f.mode)
	if err != nil {
		return err
	}
	order, err := config.ParseChunkOrderPolicy(f.order)
	if err != nil {
		return err
	}

	rep := reporter.NewTerminalReporter()

	ctl, stop := broker.ListenSIGINT(context.Background())
	defer stop()

	go func() {
		<-ctl.Hard().Done()
		rep.Warning("second interrupt received, forcing shutdown")
		os.Exit(130)
	}()

	for _, input := range inputs {
		cfg := config.NewConfig(input, outputDir, logDir)
		cfg.ChunkExtractionMode = mode
		cfg.ChunkOrderPolicy = order
		cfg.ExtraSplitsLen = f.extraSplitsLen
		cfg.Keep = f.keep
		cfg.Verbose = f.verbose
		if f.workers > 0 {
			cfg.Workers = f.workers
		}
		cfg.ThreadsPerWorker = f.threadsPerWorker
		cfg.PinThreads = f.pinThreads
		cfg.MaxTries = f.maxTries
		if f.targetQuality > 0 {
			cfg.TargetQuality = &f.targetQuality
			cfg.MinQ = f.minQ
			cfg.MaxQ = f.maxQ
			cfg.MaxProbes = f.maxProbes
		}
		if f.resumeDir != "" {
			cfg.TempDir = f.resumeDir
			cfg.Resume = true
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		outputPath, err := orchestrator.Run(ctl.Graceful(), cfg, orchestrator.Dependencies{
			Probe:          chunkcastProbe{probe.Service{}},
			SceneDetector:  scenedetect.Detector{},
			EncoderProfile: svtav1.New(),
			Reporter:       rep,
		})
		if err != nil {
			return err
		}
		rep.OperationComplete(fmt.Sprintf("encoded %s", outputPath))
	}

	return nil
}

// chunkcastProbe adapts probe.Service's SourceInfo to orchestrator.SourceInfo,
// mirroring the root package's own adapter since cmd/chunkcast can't import
// an unexported type from package chunkcast.
type chunkcastProbe struct {
	svc probe.Service
}

func (p chunkcastProbe) Inspect(ctx context.Context, path string) (orchestrator.SourceInfo, error) {
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
