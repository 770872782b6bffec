// Package reload implements the Reload Planner (spec §4.C): given a
// set of changed namespaces, it expands to the full transitive
// dependent closure, overlays the always-reload set, and returns a
// topologically ordered reload plan.
package reload

import (
	"fmt"
	"sort"

	"github.com/PrecursorApp/reloadsrv/internal/digest"
	"github.com/PrecursorApp/reloadsrv/internal/nsmeta"
	"github.com/PrecursorApp/reloadsrv/internal/oracle"
)

// Input bundles everything one Plan invocation needs.
type Input struct {
	Oracle             oracle.Oracle
	Digest             *digest.Store
	OutputDir          string
	ChangedNS          map[string]struct{}
	ExplicitAdditional map[string]struct{}
}

// Plan runs the algorithm of spec §4.C. The memoization cache it uses
// internally is constructed here and discarded on return — it never
// survives past one Plan call (spec §5, §9).
func Plan(in Input) ([]nsmeta.NS, error) {
	base := unionSet(in.ChangedNS, in.ExplicitAdditional)

	if !oracle.Available(in.Oracle) {
		names := make([]string, 0, len(base))
		for n := range base {
			names = append(names, n)
		}
		sort.Strings(names)
		out := make([]nsmeta.NS, 0, len(names))
		for _, n := range names {
			out = append(out, nsmeta.NS{Name: n})
		}
		return out, nil
	}

	memo := make(map[string]map[string]struct{})

	dependents := make(map[string]struct{})
	for n := range base {
		td, err := transitiveDependents(n, memo, in.Oracle)
		if err != nil {
			return nil, fmt.Errorf("reload: transitive dependents of %s: %w", n, err)
		}
		for d := range td {
			dependents[d] = struct{}{}
		}
	}

	additional := make(map[string]struct{})
	for d := range dependents {
		if _, in := base[d]; !in {
			additional[d] = struct{}{}
		}
	}

	all := make(map[string]struct{}, len(base)+len(additional))
	for n := range base {
		all[n] = struct{}{}
	}
	for n := range additional {
		all[n] = struct{}{}
	}

	record := make(map[string]nsmeta.NS, len(all)+8)
	for n := range base {
		record[n] = nsmeta.NS{Name: n}
	}
	for n := range additional {
		changed := false
		if target, err := in.Oracle.TargetFileFor(n, in.OutputDir); err == nil && in.Digest != nil {
			changed = in.Digest.Changed(target)
		}
		record[n] = nsmeta.NS{Name: n, FileChangedOnDisk: changed}
	}

	allNS, err := in.Oracle.AllNamespaces()
	if err != nil {
		return nil, fmt.Errorf("reload: all namespaces: %w", err)
	}
	always := make(map[string]struct{})
	for _, n := range allNS {
		if !n.Always {
			continue
		}
		if _, present := all[n.Name]; present {
			continue
		}
		if _, present := always[n.Name]; present {
			continue
		}
		always[n.Name] = struct{}{}
		record[n.Name] = nsmeta.NS{Name: n.Name, Always: true}
	}

	group := make(map[string]int, len(base)+len(additional)+len(always))
	for n := range base {
		group[n] = 0
	}
	for n := range additional {
		group[n] = 1
	}
	for n := range always {
		group[n] = 2
	}

	finalSet := make([]string, 0, len(all)+len(always))
	for n := range all {
		finalSet = append(finalSet, n)
	}
	for n := range always {
		finalSet = append(finalSet, n)
	}

	order, err := topoSort(finalSet, group, memo, in.Oracle)
	if err != nil {
		return nil, err
	}

	out := make([]nsmeta.NS, 0, len(order))
	for _, n := range order {
		if rec, ok := record[n]; ok {
			out = append(out, rec)
		} else {
			out = append(out, nsmeta.NS{Name: n})
		}
	}
	return out, nil
}

func unionSet(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for n := range a {
		out[n] = struct{}{}
	}
	for n := range b {
		out[n] = struct{}{}
	}
	return out
}

// transitiveDependents computes the full set of namespaces that
// depend, directly or transitively, on n. It is an iterative
// worklist over a shared visited set (spec §9: replaces the source's
// mutual recursion). memo is the caller's per-invocation cache; a
// namespace currently being expanded by an ancestor call shares the
// same backing map, so re-reading it mid-expansion returns whatever
// has accumulated so far — the cycle-tolerant "idempotent fixed
// point" spec §4.C describes.
func transitiveDependents(n string, memo map[string]map[string]struct{}, o oracle.Oracle) (map[string]struct{}, error) {
	if cached, ok := memo[n]; ok {
		return cached, nil
	}
	result := make(map[string]struct{})
	memo[n] = result

	direct, err := o.DirectDependents(n)
	if err != nil {
		return nil, err
	}

	visited := make(map[string]struct{}, len(direct))
	worklist := append([]string(nil), direct...)
	for len(worklist) > 0 {
		d := worklist[0]
		worklist = worklist[1:]
		if _, ok := visited[d]; ok {
			continue
		}
		visited[d] = struct{}{}
		result[d] = struct{}{}

		if d == n {
			continue
		}
		if sub, ok := memo[d]; ok {
			for x := range sub {
				if _, ok := result[x]; !ok {
					result[x] = struct{}{}
					worklist = append(worklist, x)
				}
			}
			continue
		}
		dd, err := o.DirectDependents(d)
		if err != nil {
			return nil, err
		}
		worklist = append(worklist, dd...)
	}
	return result, nil
}

// topoSort orders nodes so that for any a, b in nodes where b is a
// transitive dependent of a, a precedes b (spec §4.C step 6). Ties
// between unrelated pairs break first by group (base < additional <
// always, mirroring the spec's "always namespaces are appended") then
// by name, which yields a deterministic total order compatible with
// the dependency edges (spec §9 REDESIGN: a real topological sort
// with a deterministic tie-break, not the source's non-strict-weak
// comparator).
func topoSort(nodes []string, group map[string]int, memo map[string]map[string]struct{}, o oracle.Oracle) ([]string, error) {
	set := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		set[n] = struct{}{}
	}

	edges := make(map[string][]string, len(nodes))
	indegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		indegree[n] = 0
	}

	for _, n := range nodes {
		td, err := transitiveDependents(n, memo, o)
		if err != nil {
			return nil, err
		}
		for d := range td {
			if d == n {
				continue
			}
			if _, ok := set[d]; !ok {
				continue
			}
			edges[n] = append(edges[n], d)
			indegree[d]++
		}
	}

	less := func(a, b string) bool {
		if group[a] != group[b] {
			return group[a] < group[b]
		}
		return a < b
	}

	var ready []string
	for _, n := range nodes {
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	seen := make(map[string]struct{}, len(nodes))
	out := make([]string, 0, len(nodes))
	for len(out) < len(nodes) {
		if len(ready) == 0 {
			// Remaining nodes form a cycle (tolerated per spec §9); break
			// it deterministically by admitting the smallest remaining
			// node instead of stalling.
			var rest []string
			for _, n := range nodes {
				if _, done := seen[n]; !done {
					rest = append(rest, n)
				}
			}
			if len(rest) == 0 {
				break
			}
			sort.Slice(rest, func(i, j int) bool { return less(rest[i], rest[j]) })
			ready = append(ready, rest[0])
		}
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		n := ready[0]
		ready = ready[1:]
		if _, done := seen[n]; done {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
		for _, d := range edges[n] {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	return out, nil
}
