package digest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/PrecursorApp/reloadsrv/internal/testkit"
)

func TestChangedFirstObservationIsFalse(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "out.js")
	testkit.NoErr(t, os.WriteFile(p, []byte("v1"), 0o644))

	s := New(nil)
	testkit.False(t, s.Changed(p), "first observation must not report changed")
}

func TestChangedReportsOnlyOnActualTransition(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "out.js")
	testkit.NoErr(t, os.WriteFile(p, []byte("v1"), 0o644))

	s := New(nil)
	s.Seed([]string{p})

	testkit.False(t, s.Changed(p), "unchanged content must not report changed")

	testkit.NoErr(t, os.WriteFile(p, []byte("v2"), 0o644))
	testkit.True(t, s.Changed(p), "actual content change must report changed")
	testkit.False(t, s.Changed(p), "repeat check with same content must report unchanged")
}

func TestChangedMissingFileIsFalseAndDoesNotMutate(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "missing.js")

	s := New(nil)
	testkit.False(t, s.Changed(p))
	testkit.False(t, s.Changed(p))
}

func TestChangedGatedRequiresToken(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "deps.js")
	testkit.NoErr(t, os.WriteFile(p, []byte("no token here"), 0o644))

	s := New(nil)
	testkit.False(t, s.ChangedGated(p), "missing addDependency token must be treated as unchanged")

	testkit.NoErr(t, os.WriteFile(p, []byte("goog.addDependency('a.js', [], []);"), 0o644))
	testkit.False(t, s.ChangedGated(p), "first observation of any path never reports changed")

	testkit.NoErr(t, os.WriteFile(p, []byte("goog.addDependency('b.js', [], []);"), 0o644))
	testkit.True(t, s.ChangedGated(p), "a real content transition after the first observation reports changed")

	testkit.False(t, s.ChangedGated(p), "repeat check with same content is unchanged")
}
