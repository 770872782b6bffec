// Package devreload is an optional convenience layered on top of the
// primary poll-driven Change Ingest loop: it watches the configured
// dependency files with fsnotify and triggers an immediate ingest
// check instead of waiting for the next poll tick. It never replaces
// polling — spec §1 puts the filesystem-watch primitive itself out of
// scope, and §4.G mandates a poll for CSS specifically — this only
// shortens the *trigger* latency for the dependency-file subset.
package devreload

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of writes (a compiler rewriting a
// dependency file touches it several times in quick succession).
const DefaultDebounce = 50 * time.Millisecond

// Watcher drives an fsnotify.Watcher over the directories containing a
// fixed set of dependency files and calls Trigger, debounced, whenever
// one of them is written.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool
	debounce time.Duration
	trigger  func()

	mu       sync.Mutex
	lastFire time.Time
	timer    *time.Timer
}

// New builds a Watcher over files' containing directories. trigger is
// called (from a private timer goroutine) no more often than once per
// debounce window after the last observed write to one of files.
func New(files []string, trigger func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		if f == "" {
			continue
		}
		set[filepath.Clean(f)] = true
		dirs[filepath.Dir(f)] = true
	}
	for d := range dirs {
		if err := fw.Add(d); err != nil {
			log.Printf("devreload: not watching %s: %v", d, err)
		}
	}

	return &Watcher{
		watcher:  fw,
		files:    set,
		debounce: DefaultDebounce,
		trigger:  trigger,
	}, nil
}

// Run processes fsnotify events until Close is called. Intended to run
// in its own goroutine, mirroring the config watcher's blocking Start.
func (w *Watcher) Run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !w.files[filepath.Clean(event.Name)] {
				continue
			}
			w.scheduleFire()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("devreload: watch error: %v", err)
		}
	}
}

func (w *Watcher) scheduleFire() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.trigger)
}

// Close stops the underlying fsnotify watcher, unblocking Run.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
