// Package broker implements the Broker: a bounded worker pool that drives
// units through the PipelineRunner, with a two-stage interrupt sequence and
// optional thread-affinity pinning.
package broker

import (
	"context"
	"runtime"

	"github.com/wrightlab/chunkcast/internal/unit"
	"github.com/wrightlab/chunkcast/internal/util"
)

// encoderMemBytesPerThread and convertMemBytesPerThread estimate the steady
// state memory footprint of one pipeline instance, used by WorkerCount to
// keep concurrent units from exhausting system RAM.
const (
	encoderMemBytesPerThread = 512 << 20 // ~512 MiB per encoder thread
	convertMemBytesPerThread = 128 << 20 // ~128 MiB ffmpeg convert overhead
	pixelMemMultiplier       = 3         // bytes/pixel for 10-bit YUV420 frame buffers
)

// WorkerCount derives the worker pool size from available hardware, per
// §4.F: min(cores/threads_per_worker, ram/(megapixels*(enc_mem+convert_mem)*pix_mult)),
// floored at 1.
func WorkerCount(threadsPerWorker int, width, height uint32) int {
	if threadsPerWorker < 1 {
		threadsPerWorker = 1
	}

	cores := runtime.NumCPU()
	cpuBound := cores / threadsPerWorker
	if cpuBound < 1 {
		cpuBound = 1
	}

	megapixels := float64(width) * float64(height) / 1_000_000
	if megapixels <= 0 {
		return cpuBound
	}

	perWorkerBytes := megapixels * float64(encoderMemBytesPerThread+convertMemBytesPerThread) * pixelMemMultiplier
	available := util.AvailableMemoryBytes()
	if available == 0 || perWorkerBytes <= 0 {
		return cpuBound
	}

	memBound := int(float64(available) / perWorkerBytes)
	if memBound < 1 {
		memBound = 1
	}

	if memBound < cpuBound {
		return memBound
	}
	return cpuBound
}

// Job is one unit of work submitted to the broker.
type Job struct {
	Unit *unit.Unit
}

// Outcome is the result of running a job, reported back through Results.
type Outcome struct {
	Unit   *unit.Unit
	Frames int
	Err    error
}

// Runner abstracts the pipeline stage the broker drives workers against.
// Satisfied by *pipeline.Runner in production; tests substitute a fake.
type Runner interface {
	RunUnit(ctx context.Context, u *unit.Unit) (int, error)
}

// Broker fans units out across a bounded worker pool and collects results.
type Broker struct {
	Workers    int
	MaxTries   int
	PinThreads bool
	// Adaptive switches Run from static submission-order dispatch to the
	// proximity-based adaptiveDispatcher (OrderAdaptive).
	Adaptive bool
	runner   Runner
}

// New creates a Broker with the given worker count, retry budget, and the
// collaborator that actually runs a unit through the pipeline.
func New(workers, maxTries int, runner Runner) *Broker {
	if workers < 1 {
		workers = 1
	}
	if maxTries < 1 {
		maxTries = 1
	}
	return &Broker{Workers: workers, MaxTries: maxTries, runner: runner}
}

// Run dispatches all units across Broker.Workers goroutines and returns once
// every unit has either completed or exhausted its retry budget, or ctx is
// cancelled. Results are delivered in completion order, not submission order.
func (b *Broker) Run(ctx context.Context, units []*unit.Unit) []Outcome {
	if b.Adaptive {
		return b.runAdaptive(ctx, units)
	}

	jobs := make(chan *unit.Unit, len(units))
	for _, u := range units {
		jobs <- u
	}
	close(jobs)

	results := make(chan Outcome, len(units))

	for w := 0; w < b.Workers; w++ {
		go b.worker(ctx, w, jobs, results)
	}

	outcomes := make([]Outcome, 0, len(units))
	for i := 0; i < len(units); i++ {
		outcomes = append(outcomes, <-results)
	}
	return outcomes
}

// runAdaptive drives workers off a shared adaptiveDispatcher instead of a
// pre-filled channel, so a worker that just finished a unit pulls whichever
// remaining unit is nearest (by Index) to any completed unit.
func (b *Broker) runAdaptive(ctx context.Context, units []*unit.Unit) []Outcome {
	dispatcher := newAdaptiveDispatcher(units)
	results := make(chan Outcome, len(units))

	for w := 0; w < b.Workers; w++ {
		go func(workerIdx int) {
			if b.PinThreads {
				unpin := pinToCore(workerIdx)
				defer unpin()
			}

			for {
				u, ok := dispatcher.next()
				if !ok {
					return
				}

				var frames int
				var err error
				for attempt := 1; attempt <= b.MaxTries; attempt++ {
					if ctx.Err() != nil {
						err = ctx.Err()
						break
					}
					frames, err = b.runner.RunUnit(ctx, u)
					if err == nil {
						break
					}
				}
				dispatcher.markComplete(u.Index)
				results <- Outcome{Unit: u, Frames: frames, Err: err}
			}
		}(w)
	}

	outcomes := make([]Outcome, 0, len(units))
	for i := 0; i < len(units); i++ {
		outcomes = append(outcomes, <-results)
	}
	return outcomes
}

func (b *Broker) worker(ctx context.Context, workerIdx int, jobs <-chan *unit.Unit, results chan<- Outcome) {
	if b.PinThreads {
		unpin := pinToCore(workerIdx)
		defer unpin()
	}

	for u := range jobs {
		var frames int
		var err error
		for attempt := 1; attempt <= b.MaxTries; attempt++ {
			if ctx.Err() != nil {
				err = ctx.Err()
				break
			}
			frames, err = b.runner.RunUnit(ctx, u)
			if err == nil {
				break
			}
		}
		results <- Outcome{Unit: u, Frames: frames, Err: err}
	}
}
