// Package pipeline implements the PipelineRunner: the three-stage child
// process chain (source decode -> optional convert -> encode) for a single
// (unit, pass).
package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wrightlab/chunkcast/internal/corerr"
	"github.com/wrightlab/chunkcast/internal/unit"
)

// maxStderrBytes bounds the in-memory stderr buffer per stage; beyond this
// the buffer keeps only the most recent bytes, which is plenty for
// post-mortem diagnosis without risking unbounded memory growth on a
// pathologically chatty encoder.
const maxStderrBytes = 1 << 20 // 1 MiB

// ProgressFunc receives a cumulative encoded-frame count parsed from the
// encoder's stderr as the pass runs.
type ProgressFunc func(framesEncoded int)

// FrameProber independently probes an encoded output file's frame count,
// used for the final-pass mismatch check (§4.D). It is an external
// collaborator analogous to ProbeService.
type FrameProber interface {
	CountFrames(ctx context.Context, path string) (int, error)
}

// Runner runs the decode -> convert -> encode chain for one (unit, pass).
type Runner struct {
	Prober FrameProber

	// FilterArgs, when non-empty, is appended as the convert stage's
	// ffmpeg -vf value; the convert stage runs only when this is set. The
	// Orchestrator sets it when the source and output pixel formats differ
	// in bit depth (§4.D step 2).
	FilterArgs string
}

// Run executes one (unit, pass, worker) pipeline invocation.
//
// On success returns nil. On failure returns a *corerr.CoreError wrapping
// an *corerr.EncoderCrash; the caller can recover frames_consumed from the
// crash to subtract partial progress from a progress bar.
func (r *Runner) Run(ctx context.Context, u *unit.Unit, passIndex int, onProgress ProgressFunc) error {
	encodeArgv := u.BuildPassCommand(u.EncoderProfile, passIndex)
	if len(encodeArgv) == 0 {
		return corerr.NewOperationFailedError("pipeline: empty encode command", nil)
	}

	needsConvert := r.FilterArgs != ""

	sourceCmd := exec.CommandContext(ctx, u.SourceCommand[0], u.SourceCommand[1:]...)
	encodeCmd := exec.CommandContext(ctx, u.EncoderProfile.BinaryName(), encodeArgv...)

	var convertCmd *exec.Cmd
	if needsConvert {
		convertCmd = exec.CommandContext(ctx, "ffmpeg", "-nostdin", "-i", "pipe:0", "-vf", r.FilterArgs, "-f", "yuv4mpegpipe", "pipe:1")
	}

	sourceStdout, err := sourceCmd.StdoutPipe()
	if err != nil {
		return corerr.NewCommandStartError(strings.Join(u.SourceCommand, " "), err)
	}
	sourceStderr, err := sourceCmd.StderrPipe()
	if err != nil {
		return corerr.NewCommandStartError(strings.Join(u.SourceCommand, " "), err)
	}

	var convertStderrBuf *boundedBuffer
	if needsConvert {
		convertCmd.Stdin = sourceStdout
		convertStdout, err := convertCmd.StdoutPipe()
		if err != nil {
			return corerr.NewCommandStartError("ffmpeg convert", err)
		}
		convertStderr, err := convertCmd.StderrPipe()
		if err != nil {
			return corerr.NewCommandStartError("ffmpeg convert", err)
		}
		encodeCmd.Stdin = convertStdout
		convertStderrBuf = newBoundedBuffer(maxStderrBytes)
		go drainBuffer(convertStderr, convertStderrBuf)
	} else {
		encodeCmd.Stdin = sourceStdout
	}

	encodeStdoutBuf := newBoundedBuffer(maxStderrBytes)
	encodeCmd.Stdout = encodeStdoutBuf

	encodeStderr, err := encodeCmd.StderrPipe()
	if err != nil {
		return corerr.NewCommandStartError(u.EncoderProfile.BinaryName(), err)
	}

	sourceStderrBuf := newBoundedBuffer(maxStderrBytes)
	encodeStderrBuf := newBoundedBuffer(maxStderrBytes)

	if err := sourceCmd.Start(); err != nil {
		return corerr.NewCommandStartError(strings.Join(u.SourceCommand, " "), err)
	}
	if needsConvert {
		if err := convertCmd.Start(); err != nil {
			return corerr.NewCommandStartError("ffmpeg convert", err)
		}
	}
	if err := encodeCmd.Start(); err != nil {
		return corerr.NewCommandStartError(u.EncoderProfile.BinaryName(), err)
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		drainBuffer(sourceStderr, sourceStderrBuf)
		return nil
	})

	framesConsumed := &atomicInt{}
	g.Go(func() error {
		scanEncoderProgress(encodeStderr, encodeStderrBuf, u.EncoderProfile, framesConsumed, onProgress)
		return nil
	})

	// The encoder's exit status is the pipeline's exit status; source and
	// convert are allowed to exit naturally once the encoder closes stdin.
	encodeErr := encodeCmd.Wait()
	_ = g.Wait()
	_ = sourceCmd.Wait()
	if needsConvert {
		_ = convertCmd.Wait()
	}

	if encodeErr != nil {
		crash := &corerr.EncoderCrash{
			UnitName:       u.Name(),
			ExitStatus:     encodeErr.Error(),
			Stdout:         encodeStdoutBuf.String(),
			Stderr:         encodeStderrBuf.String(),
			SourceStderr:   sourceStderrBuf.String(),
			FramesConsumed: framesConsumed.load(),
		}
		if convertStderrBuf != nil {
			crash.ConvertStderr = convertStderrBuf.String()
		}
		return corerr.NewEncoderCrashError(crash)
	}

	if passIndex == u.Passes && r.Prober != nil {
		got, err := r.Prober.CountFrames(ctx, u.OutputPath())
		if err != nil {
			return corerr.NewProbeError(fmt.Sprintf("failed to probe output of unit %s", u.Name()), err)
		}
		if got != u.Frames() && !u.IgnoreFrameMismatch {
			return corerr.NewFrameMismatchError(u.Name(), u.Frames(), got)
		}
	}

	return nil
}

// RunUnit runs every pass of u in sequence, satisfying the broker's Runner
// interface. It returns the unit's frame count on success.
func (r *Runner) RunUnit(ctx context.Context, u *unit.Unit) (int, error) {
	for pass := 1; pass <= u.Passes; pass++ {
		if err := r.Run(ctx, u, pass, nil); err != nil {
			return 0, err
		}
	}
	return u.Frames(), nil
}

// scanEncoderProgress line-scans the encoder's stderr, splitting on carriage
// return as well as newline (encoders commonly overwrite a progress line in
// place), extracting per-line progress via the profile's parser. Invalid
// UTF-8 is tolerated by treating the line as non-progress rather than
// failing the scan.
func scanEncoderProgress(r io.Reader, buf *boundedBuffer, profile unit.EncoderProfile, consumed *atomicInt, onProgress ProgressFunc) {
	reader := bufio.NewReader(r)
	var line strings.Builder

	flush := func() {
		text := line.String()
		line.Reset()
		if text == "" {
			return
		}
		if !isValidUTF8(text) {
			return
		}
		if frames, ok := profile.ParseEncodedFrames(text); ok {
			consumed.store(frames)
			if onProgress != nil {
				onProgress(frames)
			}
		}
	}

	for {
		b, err := reader.ReadByte()
		if err != nil {
			flush()
			return
		}
		buf.WriteByte(b)
		if b == '\r' || b == '\n' {
			flush()
			continue
		}
		line.WriteByte(b)
	}
}

func isValidUTF8(s string) bool {
	return strings.ToValidUTF8(s, "") == s
}

func drainBuffer(r io.Reader, buf *boundedBuffer) {
	_, _ = io.Copy(buf, r)
}

// boundedBuffer is an io.Writer that keeps only the last limit bytes
// written to it, so a runaway stderr stream cannot exhaust memory.
type boundedBuffer struct {
	mu    sync.Mutex
	limit int
	data  []byte
}

func newBoundedBuffer(limit int) *boundedBuffer {
	return &boundedBuffer{limit: limit}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
	if len(b.data) > b.limit {
		b.data = b.data[len(b.data)-b.limit:]
	}
	return len(p), nil
}

func (b *boundedBuffer) WriteByte(c byte) error {
	_, err := b.Write([]byte{c})
	return err
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}

type atomicInt struct {
	mu sync.Mutex
	v  int
}

func (a *atomicInt) store(v int) {
	a.mu.Lock()
	a.v = v
	a.mu.Unlock()
}

func (a *atomicInt) load() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.v
}
