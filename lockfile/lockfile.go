// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package lockfile

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/stacklok/toolhive-skills/resolve"
)

const (
	// FileName is the lock file name inside an install root.
	FileName = "skills-lock.json"

	// CurrentVersion is the lockfileVersion written by this package.
	CurrentVersion = 1
)

// Record describes one installed skill. Dependencies mirror the tree the
// install resolved, so a skill shared by two installs appears under both.
type Record struct {
	Name               string   `json:"name"`
	Version            string   `json:"version"`
	BundleID           string   `json:"bundleId"`
	InstalledAt        int64    `json:"installedAt"`
	InstalledPath      string   `json:"installedPath"`
	IsDirectDependency bool     `json:"isDirectDependency"`
	Dependencies       []Record `json:"dependencies"`
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r.Dependencies != nil {
		deps := make([]Record, len(r.Dependencies))
		for i, d := range r.Dependencies {
			deps[i] = d.Clone()
		}
		r.Dependencies = deps
	}
	return r
}

// Walk calls fn for r and every record below it, depth first, parents first.
func (r *Record) Walk(fn func(*Record)) {
	fn(r)
	for i := range r.Dependencies {
		r.Dependencies[i].Walk(fn)
	}
}

// LockFile is the persisted install state of one install root.
type LockFile struct {
	LockfileVersion int      `json:"lockfileVersion"`
	GeneratedAt     int64    `json:"generatedAt"`
	InstallLocation string   `json:"installLocation"`
	Skills          []Record `json:"skills"`
}

// New returns an empty lock file for installRoot.
func New(installRoot string) *LockFile {
	return &LockFile{
		LockfileVersion: CurrentVersion,
		InstallLocation: installRoot,
		Skills:          []Record{},
	}
}

// Path returns the lock file location for installRoot.
func Path(installRoot string) string {
	return filepath.Join(installRoot, FileName)
}

// Clone returns a deep copy of lf.
func (lf *LockFile) Clone() *LockFile {
	out := *lf
	out.Skills = make([]Record, len(lf.Skills))
	for i, r := range lf.Skills {
		out.Skills[i] = r.Clone()
	}
	return &out
}

// Find returns the top-level record named name.
func (lf *LockFile) Find(name string) (Record, bool) {
	i := slices.IndexFunc(lf.Skills, func(r Record) bool { return r.Name == name })
	if i < 0 {
		return Record{}, false
	}
	return lf.Skills[i], true
}

// Installed flattens every record in the file into name -> version. When a
// skill appears more than once, the most recently installed occurrence wins,
// since that is the version on disk.
func (lf *LockFile) Installed() resolve.Installed {
	installed := resolve.Installed{}
	latest := map[string]int64{}
	for i := range lf.Skills {
		lf.Skills[i].Walk(func(r *Record) {
			if at, seen := latest[r.Name]; seen && at > r.InstalledAt {
				return
			}
			latest[r.Name] = r.InstalledAt
			installed[r.Name] = r.Version
		})
	}
	return installed
}

// Flatten returns one record per installed skill, without dependencies, in
// the order the skills first appear in the file. For a skill recorded more
// than once the most recently installed occurrence is returned.
func (lf *LockFile) Flatten() []Record {
	var out []Record
	pos := map[string]int{}
	for i := range lf.Skills {
		lf.Skills[i].Walk(func(r *Record) {
			flat := *r
			flat.Dependencies = nil
			at, seen := pos[r.Name]
			switch {
			case !seen:
				pos[r.Name] = len(out)
				out = append(out, flat)
			case r.InstalledAt >= out[at].InstalledAt:
				out[at] = flat
			}
		})
	}
	return out
}

// InstalledAt returns the installation time of the on-disk copy of name, as
// determined by Installed, or zero if the file has no record of it.
func (lf *LockFile) InstalledAt(name string) int64 {
	var at int64
	for i := range lf.Skills {
		lf.Skills[i].Walk(func(r *Record) {
			if r.Name == name && r.InstalledAt >= at {
				at = r.InstalledAt
			}
		})
	}
	return at
}

// Merge returns a new lock file holding existing's records with records
// applied: a record replaces the top-level record of the same name in place,
// otherwise it is appended. existing is not modified and may be nil.
func Merge(existing *LockFile, records ...Record) *LockFile {
	return MergeAt(existing, time.Now(), records...)
}

// MergeAt is Merge with generatedAt set to now. A lockfileVersion newer than
// CurrentVersion is kept, so Write refuses the result instead of silently
// downgrading the file.
func MergeAt(existing *LockFile, now time.Time, records ...Record) *LockFile {
	var out *LockFile
	if existing == nil {
		out = New("")
	} else {
		out = existing.Clone()
	}
	out.LockfileVersion = max(out.LockfileVersion, CurrentVersion)
	out.GeneratedAt = now.Unix()

	for _, rec := range records {
		rec = rec.Clone()
		if i := slices.IndexFunc(out.Skills, func(r Record) bool { return r.Name == rec.Name }); i >= 0 {
			out.Skills[i] = rec
			continue
		}
		out.Skills = append(out.Skills, rec)
	}
	return out
}
