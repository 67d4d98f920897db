// Package mux concatenates completed unit outputs into a single video
// track and muxes it with the separately-encoded audio, shelling out to
// ffmpeg the same way the rest of the core drives external binaries.
package mux

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/wrightlab/chunkcast/internal/corerr"
)

// WriteConcatList writes an ffmpeg concat-demuxer manifest listing each
// unit's output path, in order, and returns its path.
func WriteConcatList(tempDir string, outputPaths []string) (string, error) {
	listPath := filepath.Join(tempDir, "concat.txt")
	f, err := os.Create(listPath)
	if err != nil {
		return "", corerr.NewOperationFailedError("failed to create concat list", err)
	}
	defer func() { _ = f.Close() }()

	for _, p := range outputPaths {
		if _, err := fmt.Fprintf(f, "file '%s'\n", escapeSingleQuotes(p)); err != nil {
			return "", corerr.NewOperationFailedError("failed to write concat list", err)
		}
	}
	return listPath, nil
}

// escapeSingleQuotes escapes a path for ffmpeg's concat demuxer quoting
// rules: a literal single quote is written as '\''.
func escapeSingleQuotes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\\', '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

// ConcatVideo losslessly concatenates the per-unit video outputs listed in
// concatListPath into a single video-only container.
func ConcatVideo(ctx context.Context, concatListPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-f", "concat", "-safe", "0",
		"-i", concatListPath,
		"-c", "copy",
		outputPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return corerr.NewOperationFailedError(fmt.Sprintf("video concat failed: %s", string(out)), err)
	}
	return nil
}

// Mux combines a concatenated video track with an encoded audio track into
// the final output container.
func Mux(ctx context.Context, videoPath, audioPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a",
		"-c", "copy",
		outputPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return corerr.NewOperationFailedError(fmt.Sprintf("mux failed: %s", string(out)), err)
	}
	return nil
}
