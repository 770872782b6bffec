// Package nsmeta holds the explicit namespace-metadata record that
// replaces the source system's dynamic symbol metadata (spec §9):
// namespaces carry file-changed-on-disk and figwheel-always as plain
// fields instead of attached symbol metadata.
package nsmeta

// NS identifies one compilation unit and the flags the planner and
// oracle attach to it.
type NS struct {
	Name string

	// FileChangedOnDisk is set by the Planner for namespaces that were
	// added by dependent expansion (never for namespaces in the
	// original changed set).
	FileChangedOnDisk bool

	// Always marks a namespace the oracle reports as always-reload
	// (e.g. registration hooks).
	Always bool
}
