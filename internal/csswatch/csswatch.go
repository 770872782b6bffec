// Package csswatch implements the CSS fast path (spec §4.G): a poll
// against a last-pass timestamp, independent of the namespace reload
// pipeline.
package csswatch

import (
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/PrecursorApp/reloadsrv/internal/bus"
	"github.com/PrecursorApp/reloadsrv/internal/projectfs"
	"github.com/PrecursorApp/reloadsrv/internal/wire"
)

// Watcher holds the "last pass" timestamp used to detect CSS files
// newer than the previous check.
type Watcher struct {
	dirs      []string
	projectID string

	mu       sync.Mutex
	lastPass time.Time
}

// New creates a Watcher over the given CSS directories. An empty dirs
// slice means "no CSS directories configured" (spec §4.G): Check
// becomes a no-op.
func New(projectID string, dirs []string) *Watcher {
	return &Watcher{projectID: projectID, dirs: dirs, lastPass: time.Now()}
}

// Check enumerates .css files under the configured directories whose
// mtime exceeds the last pass, advances the last-pass timestamp, and
// publishes a css-files-changed message listing them. It does nothing
// if no CSS directories are configured.
func (w *Watcher) Check(b *bus.Bus) error {
	if len(w.dirs) == 0 {
		return nil
	}

	w.mu.Lock()
	since := w.lastPass
	w.mu.Unlock()

	now := time.Now()
	var changed []string

	for _, dir := range w.dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // best-effort: a vanished directory is not fatal
			}
			if d.IsDir() {
				return nil
			}
			if filepath.Ext(path) != ".css" {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			if info.ModTime().After(since) {
				changed = append(changed, projectfs.Normalize("", path))
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	w.mu.Lock()
	w.lastPass = now
	w.mu.Unlock()

	if len(changed) == 0 {
		return nil
	}
	b.Publish(wire.NewCSSFilesChanged(w.projectID, changed))
	return nil
}
