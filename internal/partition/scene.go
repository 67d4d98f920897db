package partition

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/wrightlab/chunkcast/internal/corerr"
)

// ScenesFileName is the persisted scene-boundary file within a run's temp dir.
const ScenesFileName = "scenes.json"

// Scene is a half-open frame range [Start, End) as returned by a scene
// detector: start[0] == 0, end[i] == start[i+1], end[last] == total_frames.
type Scene struct {
	Start int `json:"start_frame"`
	End   int `json:"end_frame"`
}

// Frames returns the scene's length in frames.
func (s Scene) Frames() int {
	return s.End - s.Start
}

type scenesDocument struct {
	TotalFrames int     `json:"total_frames"`
	Scenes      []Scene `json:"scenes"`
}

// LoadScenesFile reads a previously persisted scene list. Returns
// (nil, 0, nil) if the file does not exist, signaling the caller should run
// detection instead.
func LoadScenesFile(path string) ([]Scene, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, corerr.NewIOError("failed to read scenes file", err)
	}

	var doc scenesDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, corerr.NewJSONParseError("failed to parse scenes file", err)
	}
	return doc.Scenes, doc.TotalFrames, nil
}

// SaveScenesFile persists the scene list, atomically.
func SaveScenesFile(path string, scenes []Scene, totalFrames int) error {
	doc := scenesDocument{TotalFrames: totalFrames, Scenes: scenes}
	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return corerr.NewJSONParseError("failed to marshal scenes file", err)
	}
	return atomicWrite(path, data)
}

// SubdivideOversized splits any scene whose length exceeds maxLen into
// roughly equal sub-scenes, so no unit exceeds that length. The rule: a
// scene of length L is split into n = ceil(L / maxLen) sub-scenes of length
// floor(L/n), with the first L mod n sub-scenes getting one extra frame
// ("ceil count, front-loaded remainder"). maxLen <= 0 disables subdivision.
func SubdivideOversized(scenes []Scene, maxLen int) []Scene {
	if maxLen <= 0 {
		return scenes
	}

	out := make([]Scene, 0, len(scenes))
	for _, sc := range scenes {
		length := sc.Frames()
		if length <= maxLen {
			out = append(out, sc)
			continue
		}

		n := (length + maxLen - 1) / maxLen
		base := length / n
		remainder := length % n

		start := sc.Start
		for i := 0; i < n; i++ {
			size := base
			if i < remainder {
				size++
			}
			out = append(out, Scene{Start: start, End: start + size})
			start += size
		}
	}
	return out
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*"+filepath.Ext(path))
	if err != nil {
		return corerr.NewIOError("failed to create temp file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return corerr.NewIOError("failed to write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return corerr.NewIOError("failed to sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return corerr.NewIOError("failed to close temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return corerr.NewIOError("failed to finalize write", err)
	}
	return nil
}
