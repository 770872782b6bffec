// Package nsscan extracts the namespace a source file declares and
// groups paths by file extension, the two primitives Change Ingest
// needs to turn raw path sets into namespace sets (spec §4.D).
package nsscan

import (
	"regexp"
	"strings"

	"github.com/PrecursorApp/reloadsrv/internal/projectfs"
)

// Extension returns the letters after the final "." in path, per
// spec §4.D step 2 ("Group by file extension suffix"). Paths with no
// "." return "".
func Extension(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 || i == len(path)-1 {
		return ""
	}
	return path[i+1:]
}

// GroupByExtension partitions paths by Extension.
func GroupByExtension(paths []string) map[string][]string {
	groups := make(map[string][]string)
	for _, p := range paths {
		ext := Extension(p)
		groups[ext] = append(groups[ext], p)
	}
	return groups
}

// nsForm matches a leading (ns some.namespace.name ...) declaration,
// tolerating leading whitespace/comments and reader metadata on the
// namespace symbol ("^" prefixes).
var nsForm = regexp.MustCompile(`\(ns\s+(?:\^(?:\{[^}]*\}|[^\s()]+)\s+)?([a-zA-Z0-9_.\-!?*+<>=]+)`)

// ExtractNamespace returns the namespace declared by a source file's
// leading (ns ...) form. ok is false when no such form is found.
func ExtractNamespace(contents []byte) (name string, ok bool) {
	m := nsForm.FindSubmatch(contents)
	if m == nil {
		return "", false
	}
	name = string(m[1])
	if name == "" {
		return "", false
	}
	return name, true
}

// Mangle renders a namespace name the way it appears in the compiled
// artifact's property-access form: dashes become underscores, the
// separator the target language's module system cannot express
// literally (spec §3: "namespace: string (mangled form)").
func Mangle(ns string) string {
	return strings.ReplaceAll(ns, "-", "_")
}

// ReadNamespace reads path through fs and extracts its declared
// namespace. Any read failure or malformed leading form is reported
// by ok=false; per spec §4.D / §7 that path simply contributes no
// namespace, it is never a propagated error.
func ReadNamespace(fs *projectfs.FS, path string) (string, bool) {
	var (
		b   []byte
		err error
	)
	if fs != nil {
		b, err = fs.ReadFile(path)
	} else {
		b, err = projectfsReadFallback(path)
	}
	if err != nil {
		return "", false
	}
	return ExtractNamespace(b)
}

func projectfsReadFallback(path string) ([]byte, error) {
	if d := projectfs.Default(); d != nil {
		return d.ReadFile(path)
	}
	return nil, errNoFS
}

type noFSError struct{}

func (noFSError) Error() string { return "nsscan: no filesystem configured" }

var errNoFS = noFSError{}
