package validation

import (
	"context"

	"github.com/wrightlab/chunkcast/internal/mediainfo"
	"github.com/wrightlab/chunkcast/internal/probe"
)

// DefaultAnalyzer implements MediaAnalyzer using the same probe.Service the
// Orchestrator uses to inspect the source, plus mediainfo for HDR detection
// (ffprobe's own color-metadata heuristic is not reliable enough to trust on
// its own; mediainfo is the second opinion).
type DefaultAnalyzer struct {
	svc probe.Service
}

// NewDefaultAnalyzer creates a new DefaultAnalyzer instance.
func NewDefaultAnalyzer() *DefaultAnalyzer {
	return &DefaultAnalyzer{}
}

// GetVideoProperties returns video stream properties using probe.Service.
func (a *DefaultAnalyzer) GetVideoProperties(path string) (*AnalyzerVideoProperties, error) {
	props, err := a.svc.VideoProperties(context.Background(), path)
	if err != nil {
		return nil, err
	}
	return &AnalyzerVideoProperties{
		Width:        props.Width,
		Height:       props.Height,
		DurationSecs: props.DurationSecs,
		BitDepth:     props.BitDepth,
	}, nil
}

// GetAudioStreams returns audio stream information using probe.Service.
func (a *DefaultAnalyzer) GetAudioStreams(path string) ([]AnalyzerAudioStream, error) {
	streams, err := a.svc.AudioStreams(context.Background(), path)
	if err != nil {
		return nil, err
	}

	result := make([]AnalyzerAudioStream, len(streams))
	for i, s := range streams {
		result[i] = AnalyzerAudioStream{Codec: s.Codec, Channels: s.Channels}
	}
	return result, nil
}

// GetVideoCodec returns the video codec name using probe.Service.
func (a *DefaultAnalyzer) GetVideoCodec(path string) (string, error) {
	return a.svc.VideoCodecName(context.Background(), path)
}

// GetHDRInfo returns HDR detection information using mediainfo.
func (a *DefaultAnalyzer) GetHDRInfo(path string) (*AnalyzerHDRInfo, error) {
	info, err := mediainfo.GetMediaInfo(path)
	if err != nil {
		return nil, err
	}

	hdr := mediainfo.DetectHDR(info)
	return &AnalyzerHDRInfo{
		IsHDR:    hdr.IsHDR,
		BitDepth: hdr.BitDepth,
	}, nil
}

// IsHDRDetectionAvailable returns whether mediainfo is available.
func (a *DefaultAnalyzer) IsHDRDetectionAvailable() bool {
	return mediainfo.IsAvailable()
}
