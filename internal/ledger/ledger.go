// Package ledger implements the crash-safe resume manifest (ProgressLedger)
// that lets an interrupted run restart without redoing finished units.
package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/wrightlab/chunkcast/internal/corerr"
)

// FileName is the manifest's file name within a run's temp directory.
const FileName = "done.json"

// CompletedUnit records a successfully encoded unit's size, keyed by the
// unit's zero-padded index string in the Ledger's Completed map.
type CompletedUnit struct {
	Frames    int   `json:"frames"`
	SizeBytes int64 `json:"size_bytes"`
}

// document is the on-disk JSON shape; Ledger wraps it with a mutex and an
// atomic frame counter so readers never observe a half-written mutation.
type document struct {
	Frames    int64                    `json:"frames"`
	Completed map[string]CompletedUnit `json:"done"`
	AudioDone bool                     `json:"audio_done"`
}

// Ledger is the mutable manifest of completed units. It is persisted to disk
// after every mutation so a killed process can resume from the last write.
// One serializing mutex covers both the in-memory mutation and the disk
// write, matching the single-writer discipline workers use when pushing
// deltas back through the Broker.
type Ledger struct {
	path string

	mu        sync.Mutex
	completed map[string]CompletedUnit
	audioDone bool

	totalFrames atomic.Int64
}

// New creates an empty Ledger backed by path (not yet written to disk).
func New(path string) *Ledger {
	return &Ledger{
		path:      path,
		completed: make(map[string]CompletedUnit),
	}
}

// Load reads an existing manifest from path. A missing file yields an empty
// Ledger. A present-but-empty or truncated file (the tail of a write that
// was interrupted mid-rename) is treated the same as "not completed" for
// every unit rather than as an error, per the ledger's resume-tolerance
// invariant.
func Load(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(path), nil
		}
		return nil, corerr.NewIOError("failed to read ledger", err)
	}

	if len(data) == 0 {
		return New(path), nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		// A truncated write looks like invalid JSON; resume from scratch
		// rather than failing the run outright.
		return New(path), nil
	}

	l := New(path)
	l.totalFrames.Store(doc.Frames)
	l.audioDone = doc.AudioDone
	if doc.Completed != nil {
		l.completed = doc.Completed
	}
	return l, nil
}

// Contains reports whether the named unit is already recorded as completed.
func (l *Ledger) Contains(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.completed[name]
	return ok
}

// Record marks a unit completed and persists the manifest. Calling Record
// twice for the same name overwrites its entry and re-adds its frames to the
// total, so callers must not record the same unit twice — the Broker's
// single-writer discipline already guarantees that.
func (l *Ledger) Record(name string, frames int, sizeBytes int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.completed[name] = CompletedUnit{Frames: frames, SizeBytes: sizeBytes}
	l.totalFrames.Add(int64(frames))

	return l.persistLocked()
}

// SetAudioDone marks the fire-and-forget audio encode complete and persists
// the manifest.
func (l *Ledger) SetAudioDone(done bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.audioDone = done
	return l.persistLocked()
}

// AudioDone reports whether the audio track has finished encoding.
func (l *Ledger) AudioDone() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.audioDone
}

// CompletedFrames returns the running total of frames across all recorded units.
func (l *Ledger) CompletedFrames() int64 {
	return l.totalFrames.Load()
}

// CompletedCount returns the number of units recorded as completed.
func (l *Ledger) CompletedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.completed)
}

// CompletedNames returns the set of unit names currently recorded, for
// filtering a freshly loaded queue on resume.
func (l *Ledger) CompletedNames() map[string]struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make(map[string]struct{}, len(l.completed))
	for name := range l.completed {
		names[name] = struct{}{}
	}
	return names
}

// persistLocked writes the manifest to disk via a temp file plus rename so a
// crash mid-write never leaves a corrupt done.json in place of a good one.
// Callers must hold l.mu.
func (l *Ledger) persistLocked() error {
	doc := document{
		Frames:    l.totalFrames.Load(),
		Completed: l.completed,
		AudioDone: l.audioDone,
	}

	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return corerr.NewJSONParseError("failed to marshal ledger", err)
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".done-*.json.tmp")
	if err != nil {
		return corerr.NewIOError("failed to create ledger temp file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return corerr.NewIOError("failed to write ledger temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return corerr.NewIOError("failed to sync ledger temp file", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return corerr.NewIOError("failed to close ledger temp file", err)
	}

	if err := os.Rename(tmpPath, l.path); err != nil {
		_ = os.Remove(tmpPath)
		return corerr.NewIOError("failed to finalize ledger write", err)
	}

	return nil
}
