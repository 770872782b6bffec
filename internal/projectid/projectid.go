// Package projectid derives the stable per-working-tree project-id
// (spec §3, §6.4): the name and version from a project manifest's
// leading defproject form when one exists, otherwise the canonical
// working directory path.
package projectid

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// manifestNames are tried in order; only the first one found is read.
var manifestNames = []string{"project.clj"}

// defprojectForm matches the head of a (defproject name "version" ...)
// form, tolerating any amount of leading whitespace and comments.
var defprojectForm = regexp.MustCompile(`\(defproject\s+([^\s()]+)\s+"([^"]*)"`)

// Resolve derives project-id for the project rooted at dir. It never
// returns an error for a missing or unparsable manifest — that just
// falls through to the canonical-path fallback, matching spec §3's
// "otherwise the canonical path of the working directory."
func Resolve(dir string) (string, error) {
	if name, version, ok := readManifest(dir); ok {
		return name + "--" + version, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("projectid: resolve canonical path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs, nil
	}
	return resolved, nil
}

func readManifest(dir string) (name, version string, ok bool) {
	for _, n := range manifestNames {
		path := filepath.Join(dir, n)
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		name, version, ok = scanDefproject(f)
		f.Close()
		if ok {
			return name, version, true
		}
	}
	return "", "", false
}

// scanDefproject reads up to the first (defproject ...) form appearing
// in r, line by line; it does not attempt to parse nested s-expression
// structure beyond the form's head, matching spec §6.4's "no general
// s-expression parser needed" stance.
func scanDefproject(r io.Reader) (string, string, bool) {
	sc := bufio.NewScanner(r)
	var buf strings.Builder
	for sc.Scan() {
		buf.WriteString(sc.Text())
		buf.WriteByte('\n')
		if m := defprojectForm.FindStringSubmatch(buf.String()); m != nil {
			return m[1], m[2], true
		}
	}
	return "", "", false
}
