// Package audioenc encodes the source's audio track to Opus in parallel
// with video encoding, since audio encode time is negligible next to video
// and need not block the broker.
package audioenc

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/wrightlab/chunkcast/internal/corerr"
)

// Encode runs a one-shot ffmpeg invocation that extracts and encodes the
// input's audio to Opus at outputPath. Safe to call from a background
// goroutine; the caller collects the error over a channel.
func Encode(ctx context.Context, inputPath, outputPath string, bitrateKbps int) error {
	if bitrateKbps <= 0 {
		bitrateKbps = 128
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-i", inputPath,
		"-vn",
		"-c:a", "libopus",
		"-b:a", fmt.Sprintf("%dk", bitrateKbps),
		outputPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return corerr.NewOperationFailedError(fmt.Sprintf("audio encode failed: %s", string(out)), err)
	}
	return nil
}

// EncodeAsync launches Encode on a background goroutine and returns a
// channel that receives its result exactly once.
func EncodeAsync(ctx context.Context, inputPath, outputPath string, bitrateKbps int) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- Encode(ctx, inputPath, outputPath, bitrateKbps)
	}()
	return done
}
