/*
This file is part of btrfsclone.

Btrfsclone is free software: you can redistribute it and/or modify it under the terms of the
GNU Lesser General Public License as published by the Free Software Foundation, either
version 3 of the License, or (at your option) any later version.

Btrfsclone is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
See the GNU Lesser General Public License for more details.

You should have received a copy of the GNU Lesser General Public License along with btrfsclone.
If not, see <https://www.gnu.org/licenses/>.
*/

package planner

import (
	"path/filepath"
	"sort"
	"strconv"

	"github.com/nullseed/btrfsclone/internal/inventory"
)

// SnapshotStrategy is the default strategy. Among a family of snapshots
// sharing a common progenitor, adjacent siblings differ much less from each
// other than from the live subvolume; using the nearest sibling as the send
// parent maximizes shared extents on the destination.
type SnapshotStrategy struct{}

func (SnapshotStrategy) Plan(inv *inventory.Inventory, sourceRoot, destRoot, stagingRoot string) []Job {
	var jobs []Job
	roots := inv.Roots()
	// Stable order across runs: order roots by (creation_gen, id) ascending,
	// mirroring the inventory's own primary sort key.
	sort.SliceStable(roots, func(i, j int) bool {
		return lessByGenThenID(roots[i], roots[j])
	})
	for _, root := range roots {
		jobs = append(jobs, planFamily(inv, sourceRoot, stagingRoot, root, nil)...)
	}
	return jobs
}

// planFamily emits the job for sv (with previous as both parent and clone
// source, or neither if this is a root) and then recurses into sv's
// children, newest-first, each using the previously-sent sibling as its own
// reference.
func planFamily(inv *inventory.Inventory, sourceRoot, stagingRoot string, sv, previous *inventory.Subvolume) []Job {
	stageDir := filepath.Join(stagingRoot, strconv.Itoa(sv.ID))

	job := Job{
		Subvolume:  sv,
		Source:     filepath.Join(sourceRoot, sv.Path),
		ReceiveDir: stageDir,
	}
	if previous != nil {
		previousStaged := filepath.Join(stagingRoot, strconv.Itoa(previous.ID), filepath.Base(previous.Path))
		job.Parent = previousStaged
		job.CloneSources = []string{previousStaged}
	}
	jobs := []Job{job}

	children := inv.Children(sv)
	sort.SliceStable(children, func(i, j int) bool {
		// Newest first: descending (creation_gen, id).
		return lessByGenThenID(children[j], children[i])
	})

	prev := sv
	for _, child := range children {
		jobs = append(jobs, planFamily(inv, sourceRoot, stagingRoot, child, prev)...)
		prev = child
	}
	return jobs
}

func lessByGenThenID(a, b *inventory.Subvolume) bool {
	if a.CreationGen != b.CreationGen {
		return a.CreationGen < b.CreationGen
	}
	return a.ID < b.ID
}
