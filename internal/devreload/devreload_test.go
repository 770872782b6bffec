package devreload

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PrecursorApp/reloadsrv/internal/testkit"
)

func TestWatcherTriggersOnWrite(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "deps.js")
	testkit.NoErr(t, os.WriteFile(target, []byte("goog.addDependency()"), 0o644))

	var fired atomic.Int32
	w, err := New([]string{target}, func() { fired.Add(1) })
	testkit.NoErr(t, err)
	w.debounce = 5 * time.Millisecond
	defer w.Close()
	go w.Run()

	time.Sleep(20 * time.Millisecond)
	testkit.NoErr(t, os.WriteFile(target, []byte("goog.addDependency(2)"), 0o644))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fired.Load() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected trigger to fire after a watched write")
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "deps.js")
	other := filepath.Join(dir, "other.txt")
	testkit.NoErr(t, os.WriteFile(target, []byte("x"), 0o644))

	var fired atomic.Int32
	w, err := New([]string{target}, func() { fired.Add(1) })
	testkit.NoErr(t, err)
	w.debounce = 5 * time.Millisecond
	defer w.Close()
	go w.Run()

	time.Sleep(20 * time.Millisecond)
	testkit.NoErr(t, os.WriteFile(other, []byte("y"), 0o644))
	time.Sleep(50 * time.Millisecond)
	testkit.Eq(t, fired.Load(), int32(0))
}
