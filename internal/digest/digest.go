// Package digest implements the content-addressed change detector
// over compiled artifact paths (spec §4.A): a process-wide digest
// cache that tells real content changes apart from timestamp churn.
package digest

import (
	"bytes"
	"crypto/sha256"
	"os"
	"sync"

	"github.com/PrecursorApp/reloadsrv/internal/projectfs"
)

// dependencyFileToken is the literal marker the source gates a
// subset of artifacts on before treating them as actually changed
// (spec §4.A, §9 — preserved as-is; its exact intent is a guess).
const dependencyFileToken = "addDependency"

// Store is a sync.Mutex-guarded path-to-digest map. A single coarse
// mutex is sufficient per spec §4.A: reads are infrequent enough that
// per-path locking buys nothing.
type Store struct {
	fs *projectfs.FS

	mu      sync.Mutex
	digests map[string][]byte
}

// New creates an empty Store. Reads go through fs when non-nil,
// otherwise through the process-wide default projectfs.FS.
func New(fs *projectfs.FS) *Store {
	return &Store{fs: fs, digests: make(map[string][]byte)}
}

func (s *Store) readFile(path string) ([]byte, error) {
	fs := s.fs
	if fs == nil {
		fs = projectfs.Default()
	}
	if fs != nil {
		return fs.ReadFile(path)
	}
	return os.ReadFile(path)
}

// Changed reads path, computes its digest, and reports whether it
// differs from the previously stored digest for that path. A path
// that doesn't exist, or can't be read for any other reason, is
// treated as unchanged without mutating the store (spec §4.A, §7). A
// path observed for the first time is never reported as changed: its
// digest is recorded and false is returned.
func (s *Store) Changed(path string) bool {
	b, err := s.readFile(path)
	if err != nil {
		return false
	}
	return s.record(path, b)
}

// ChangedGated behaves like Changed, but for the dependency-file set
// (spec §6.2) it additionally requires the file's contents to contain
// the literal token "addDependency" before considering the read at
// all; a file missing the token is treated as unchanged and the store
// is left untouched, filtering transient half-written compiler output
// (spec §4.A, §9).
func (s *Store) ChangedGated(path string) bool {
	b, err := s.readFile(path)
	if err != nil {
		return false
	}
	if !bytes.Contains(b, []byte(dependencyFileToken)) {
		return false
	}
	return s.record(path, b)
}

// Contents reads path again and returns its current contents. Used
// by Change Ingest to ship the full textual contents of a changed
// dependency file as eval-body (spec §4.D step 6).
func (s *Store) Contents(path string) (string, error) {
	b, err := s.readFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Seed iterates Changed over paths for side effect only, so that the
// first real change-check after startup doesn't produce spurious hits
// (spec §4.A).
func (s *Store) Seed(paths []string) {
	for _, p := range paths {
		s.Changed(p)
	}
}

func (s *Store) record(path string, contents []byte) bool {
	sum := sha256.Sum256(contents)
	next := sum[:]

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.digests[path]
	s.digests[path] = next
	if !ok {
		return false
	}
	return !bytes.Equal(prev, next)
}
