// Package oracle defines the read-only interface the Reload Planner
// uses to query the external compiler's dependency graph (spec §4.B).
// The compiler itself is out of scope; this package only describes
// the contract and ships a static test double that exercises it.
package oracle

import (
	"fmt"
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/PrecursorApp/reloadsrv/internal/nsmeta"
)

// Oracle is implemented by the external compiler toolchain's analysis
// environment. The Planner treats it as read-only and may call it
// many times per expansion; results may change between expansions.
type Oracle interface {
	// DirectDependents returns the immediate reverse edges for ns: the
	// namespaces that directly depend on it.
	DirectDependents(ns string) ([]string, error)

	// AllNamespaces returns every namespace currently known to the
	// compiler, with metadata attached.
	AllNamespaces() ([]nsmeta.NS, error)

	// TargetFileFor returns the emitted artifact path for ns, under
	// outputDir.
	TargetFileFor(ns, outputDir string) (string, error)
}

// Available reports whether o represents a live compiler analysis
// environment. A nil Oracle means the environment is absent, and the
// Planner's step 1 short-circuit applies (spec §4.C).
func Available(o Oracle) bool {
	return o != nil
}

// StaticOracle is an adjacency-map backed Oracle, used by tests and
// documented here as the reference implementation of the interface
// contract. Edges map a namespace to the namespaces that directly
// depend on it (the same direction DirectDependents returns).
type StaticOracle struct {
	Edges map[string][]string
	NS    []nsmeta.NS
}

func (o *StaticOracle) DirectDependents(ns string) ([]string, error) {
	if o == nil {
		return nil, nil
	}
	return append([]string(nil), o.Edges[ns]...), nil
}

func (o *StaticOracle) AllNamespaces() ([]nsmeta.NS, error) {
	if o == nil {
		return nil, nil
	}
	return append([]nsmeta.NS(nil), o.NS...), nil
}

func (o *StaticOracle) TargetFileFor(ns, outputDir string) (string, error) {
	if ns == "" {
		return "", fmt.Errorf("oracle: empty namespace")
	}
	rel := strings.ReplaceAll(ns, ".", "/") + ".js"
	if outputDir == "" {
		return rel, nil
	}
	return path.Join(outputDir, rel), nil
}

// CachedTargetFiles wraps an Oracle with a bounded LRU memo of
// TargetFileFor resolutions. This cache is distinct from — and
// outlives — the Planner's per-invocation transitive-dependents memo;
// it only ever saves re-deriving an artifact path for a namespace the
// compiler hasn't touched, never dependency-graph answers, so it
// cannot leak stale graph state across compile cycles (spec §5).
type CachedTargetFiles struct {
	Oracle
	cache *lru.Cache[string, string]
}

// NewCachedTargetFiles wraps o with an LRU of the given size holding
// "ns\x00outputDir" -> target path.
func NewCachedTargetFiles(o Oracle, size int) (*CachedTargetFiles, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &CachedTargetFiles{Oracle: o, cache: c}, nil
}

func (c *CachedTargetFiles) TargetFileFor(ns, outputDir string) (string, error) {
	key := ns + "\x00" + outputDir
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := c.Oracle.TargetFileFor(ns, outputDir)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, v)
	return v, nil
}
