// Package probe implements the default ProbeService and FrameProber by
// shelling out to ffprobe, the same way the encoder profiles shell out to
// their encoder binaries.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/wrightlab/chunkcast/internal/corerr"
)

// SourceInfo describes the properties of the input media the Orchestrator
// needs before partitioning: total frame count, frame rate, resolution, and
// native pixel format (used to decide whether the pipeline's convert stage
// needs to run).
type SourceInfo struct {
	TotalFrames  int
	Width        int
	Height       int
	FrameRateNum int
	FrameRateDen int
	PixFmt       string
}

// Service is the default ProbeService, backed by ffprobe.
type Service struct{}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	CodecType        string `json:"codec_type"`
	CodecName        string `json:"codec_name"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	Channels         int    `json:"channels"`
	NbFrames         string `json:"nb_frames"`
	RFrameRate       string `json:"r_frame_rate"`
	PixFmt           string `json:"pix_fmt"`
	BitsPerRawSample string `json:"bits_per_raw_sample"`
}

// VideoProperties is the subset of an already-muxed output file's properties
// post-encode validation checks: resolution, duration, and bit depth.
type VideoProperties struct {
	Width        uint32
	Height       uint32
	DurationSecs float64
	BitDepth     *uint8
}

// AudioStreamInfo is one audio stream's codec and channel count, as needed
// by post-encode validation to confirm the expected Opus track survived mux.
type AudioStreamInfo struct {
	Codec    string
	Channels int
}

func run(ctx context.Context, path string) (*ffprobeOutput, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, corerr.NewProbeError("ffprobe failed for "+path, err)
	}
	var result ffprobeOutput
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, corerr.NewProbeError("failed to parse ffprobe output for "+path, err)
	}
	return &result, nil
}

// Inspect returns the SourceInfo the partitioner and broker need to plan and
// size the encode.
func (Service) Inspect(ctx context.Context, path string) (SourceInfo, error) {
	probe, err := run(ctx, path)
	if err != nil {
		return SourceInfo{}, err
	}

	var info SourceInfo
	for _, s := range probe.Streams {
		if s.CodecType != "video" {
			continue
		}
		info.Width = s.Width
		info.Height = s.Height
		info.PixFmt = s.PixFmt
		if s.NbFrames != "" {
			if n, err := strconv.Atoi(s.NbFrames); err == nil {
				info.TotalFrames = n
			}
		}
		info.FrameRateNum, info.FrameRateDen = parseFrameRate(s.RFrameRate)
		break
	}
	if info.Width == 0 || info.Height == 0 {
		return SourceInfo{}, corerr.NewProbeError(fmt.Sprintf("no video stream found in %s", path), nil)
	}
	return info, nil
}

// CountFrames satisfies pipeline.FrameProber: it reports the exact frame
// count of an already-encoded output file, independent of the source
// probe, for the final-pass mismatch check.
func (Service) CountFrames(ctx context.Context, path string) (int, error) {
	probe, err := run(ctx, path)
	if err != nil {
		return 0, err
	}
	for _, s := range probe.Streams {
		if s.CodecType != "video" {
			continue
		}
		if s.NbFrames == "" {
			return 0, corerr.NewProbeError("encoded output carries no frame count: "+path, nil)
		}
		n, err := strconv.Atoi(s.NbFrames)
		if err != nil {
			return 0, corerr.NewProbeError("unparseable frame count in "+path, err)
		}
		return n, nil
	}
	return 0, corerr.NewProbeError("no video stream found in "+path, nil)
}

// VideoProperties returns resolution, duration, and bit depth for an
// already-encoded output file, used by post-encode validation.
func (Service) VideoProperties(ctx context.Context, path string) (VideoProperties, error) {
	p, err := run(ctx, path)
	if err != nil {
		return VideoProperties{}, err
	}

	var videoStream *ffprobeStream
	for i := range p.Streams {
		if p.Streams[i].CodecType == "video" {
			videoStream = &p.Streams[i]
			break
		}
	}
	if videoStream == nil {
		return VideoProperties{}, corerr.NewProbeError("no video stream found in "+path, nil)
	}
	if videoStream.Width <= 0 || videoStream.Height <= 0 {
		return VideoProperties{}, corerr.NewProbeError(fmt.Sprintf("invalid dimensions in %s: %dx%d", path, videoStream.Width, videoStream.Height), nil)
	}

	var durationSecs float64
	if p.Format.Duration != "" {
		if d, err := strconv.ParseFloat(p.Format.Duration, 64); err == nil {
			durationSecs = d
		}
	}

	var bitDepth *uint8
	if videoStream.BitsPerRawSample != "" {
		if bd, err := strconv.ParseUint(videoStream.BitsPerRawSample, 10, 8); err == nil {
			v := uint8(bd)
			bitDepth = &v
		}
	}

	return VideoProperties{
		Width:        uint32(videoStream.Width),
		Height:       uint32(videoStream.Height),
		DurationSecs: durationSecs,
		BitDepth:     bitDepth,
	}, nil
}

// VideoCodecName returns the video stream's codec name, used by post-encode
// validation to confirm the output is AV1.
func (Service) VideoCodecName(ctx context.Context, path string) (string, error) {
	p, err := run(ctx, path)
	if err != nil {
		return "", err
	}
	for _, s := range p.Streams {
		if s.CodecType == "video" {
			return s.CodecName, nil
		}
	}
	return "", corerr.NewProbeError("no video stream found in "+path, nil)
}

// AudioStreams returns codec and channel count for every audio stream, used
// by post-encode validation to confirm the Opus track(s) survived mux.
func (Service) AudioStreams(ctx context.Context, path string) ([]AudioStreamInfo, error) {
	p, err := run(ctx, path)
	if err != nil {
		return nil, err
	}
	var streams []AudioStreamInfo
	for _, s := range p.Streams {
		if s.CodecType != "audio" || s.Channels <= 0 {
			continue
		}
		streams = append(streams, AudioStreamInfo{Codec: s.CodecName, Channels: s.Channels})
	}
	return streams, nil
}

func parseFrameRate(s string) (num, den int) {
	if s == "" {
		return 0, 0
	}
	var n, d int
	if _, err := fmt.Sscanf(s, "%d/%d", &n, &d); err == nil && d != 0 {
		return n, d
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, 1
	}
	return 0, 0
}
