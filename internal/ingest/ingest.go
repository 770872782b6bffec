// Package ingest implements Change Ingest (spec §4.D): it diffs two
// mtime snapshots, classifies the changes by file kind, and drives
// the Reload Planner to produce a single files-changed message.
package ingest

import (
	"log"

	"github.com/PrecursorApp/reloadsrv/internal/bus"
	"github.com/PrecursorApp/reloadsrv/internal/digest"
	"github.com/PrecursorApp/reloadsrv/internal/nsscan"
	"github.com/PrecursorApp/reloadsrv/internal/oracle"
	"github.com/PrecursorApp/reloadsrv/internal/projectfs"
	"github.com/PrecursorApp/reloadsrv/internal/reload"
	"github.com/PrecursorApp/reloadsrv/internal/wire"
)

// Config wires Ingest to the rest of the server.
type Config struct {
	Oracle oracle.Oracle
	Digest *digest.Store
	Bus    *bus.Bus
	FS     *projectfs.FS

	ProjectID string
	BuildID   string
	OutputDir string

	// BrowserTargetExt is the extension (without dot) of compiled
	// artifacts namespaces are extracted from, e.g. "js".
	BrowserTargetExt string
	// MacroTriggerExt is the extension of the source-only, compiled-
	// through-macros kind that forces a full browser-target rebuild
	// signal when it changes, e.g. "clj".
	MacroTriggerExt string
	// DependencyFiles is the §6.2 set: output-to plus the generated
	// manifest files, excluded from namespace-based reload and
	// content-hashed instead.
	DependencyFiles []string
}

// Ingest runs Change Ingest against a fixed Config.
type Ingest struct {
	cfg Config
}

// New returns an Ingest bound to cfg.
func New(cfg Config) *Ingest {
	return &Ingest{cfg: cfg}
}

// CheckForChanges runs one ingest cycle (spec §4.D). The returned
// message is also published to cfg.Bus when non-nil; it is nil when
// the cycle produced no files-changed content to publish (spec §4.D
// edge case: "empty resulting message is not published").
func (in *Ingest) CheckForChanges(oldMtimes, newMtimes map[string]int64, additionalNS map[string]struct{}) (*wire.Message, error) {
	changedPaths := diffMtimes(oldMtimes, newMtimes)
	groups := nsscan.GroupByExtension(changedPaths)

	browserGroup := groups[in.cfg.BrowserTargetExt]
	if macroChanged := groups[in.cfg.MacroTriggerExt]; len(macroChanged) > 0 {
		browserGroup = allOfExtension(newMtimes, in.cfg.BrowserTargetExt)
	}

	changedNS := make(map[string]struct{}, len(browserGroup))
	for _, p := range browserGroup {
		if name, ok := nsscan.ReadNamespace(in.cfg.FS, p); ok {
			changedNS[name] = struct{}{}
		}
	}

	plan, err := reload.Plan(reload.Input{
		Oracle:             in.cfg.Oracle,
		Digest:             in.cfg.Digest,
		OutputDir:          in.cfg.OutputDir,
		ChangedNS:          changedNS,
		ExplicitAdditional: additionalNS,
	})
	if err != nil {
		return nil, err
	}

	depRecords := in.dependencyUpdateRecords()

	nsRecords := make([]wire.FileRecord, 0, len(plan))
	for _, n := range plan {
		target := n.Name
		if in.cfg.Oracle != nil {
			if t, err := in.cfg.Oracle.TargetFileFor(n.Name, in.cfg.OutputDir); err == nil {
				target = t
			}
		}
		nsRecords = append(nsRecords, wire.FileRecord{
			File:      target,
			Namespace: nsscan.Mangle(n.Name),
			Type:      wire.FileTypeNamespace,
			Meta: map[string]any{
				"file-changed-on-disk": n.FileChangedOnDisk,
				"figwheel-always":      n.Always,
			},
		})
	}

	if len(depRecords) == 0 && len(nsRecords) == 0 {
		return nil, nil
	}

	msg := wire.NewFilesChanged(in.cfg.ProjectID, in.cfg.BuildID, depRecords, nsRecords)
	if in.cfg.Bus != nil {
		in.cfg.Bus.Publish(msg)
	}
	for _, p := range browserGroup {
		log.Printf("ingest: notifying change in %s", p)
	}
	return &msg, nil
}

// dependencyUpdateRecords checks each configured dependency file
// (spec §6.2) and ships its full contents as eval-body for any that
// pass the addDependency-gated digest check.
func (in *Ingest) dependencyUpdateRecords() []wire.FileRecord {
	if in.cfg.Digest == nil {
		return nil
	}
	var out []wire.FileRecord
	for _, path := range in.cfg.DependencyFiles {
		if path == "" {
			continue
		}
		if !in.cfg.Digest.ChangedGated(path) {
			continue
		}
		body, err := in.cfg.Digest.Contents(path)
		if err != nil {
			continue
		}
		out = append(out, wire.FileRecord{
			File:           path,
			Type:           "dependency-update",
			EvalBody:       body,
			DependencyFile: true,
		})
	}
	return out
}

func diffMtimes(oldMtimes, newMtimes map[string]int64) []string {
	seen := make(map[string]struct{}, len(oldMtimes)+len(newMtimes))
	var changed []string
	for p := range oldMtimes {
		seen[p] = struct{}{}
	}
	for p := range newMtimes {
		seen[p] = struct{}{}
	}
	for p := range seen {
		if oldMtimes[p] != newMtimes[p] {
			changed = append(changed, p)
		}
	}
	return changed
}

func allOfExtension(mtimes map[string]int64, ext string) []string {
	var out []string
	for p := range mtimes {
		if nsscan.Extension(p) == ext {
			out = append(out, p)
		}
	}
	return out
}
