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

	"github.com/google/uuid"

	"github.com/nullseed/btrfsclone/internal/inventory"
)

// ParentStrategy replicates every subvolume using its full ancestor chain
// (via repeated parent_uuid lookup) as parent and clone sources. It
// preserves original parent-child genealogy but frequently chooses a
// distant ancestor as the diff base, so received streams tend to be larger
// and less tightly shared than under SnapshotStrategy.
//
// The tool this was modeled on restricts this loop to the first two
// inventoried subvolumes. That restriction is not reproduced here: every
// subvolume in the inventory is replicated, which is almost certainly what
// was intended.
type ParentStrategy struct{}

func (ParentStrategy) Plan(inv *inventory.Inventory, sourceRoot, destRoot, stagingRoot string) []Job {
	var jobs []Job
	for _, sv := range inv.Subvolumes {
		chain := ancestorChain(inv, sv)

		var parent string
		var cloneSources []string
		for _, ancestor := range chain {
			p := filepath.Join(sourceRoot, ancestor.Path)
			cloneSources = append(cloneSources, p)
		}
		if len(chain) > 0 {
			parent = filepath.Join(sourceRoot, chain[0].Path)
		}

		jobs = append(jobs, Job{
			Subvolume:    sv,
			Source:       filepath.Join(sourceRoot, sv.Path),
			ReceiveDir:   filepath.Join(destRoot, filepath.Dir(sv.Path)),
			Parent:       parent,
			CloneSources: cloneSources,
		})
	}
	return jobs
}

// ancestorChain walks parent_uuid links starting at sv, stopping at an
// original (no parent uuid) or at a parent uuid absent from the inventory
// (a foreign parent, treated as a chain terminator rather than an error).
func ancestorChain(inv *inventory.Inventory, sv *inventory.Subvolume) []*inventory.Subvolume {
	var chain []*inventory.Subvolume
	current := sv
	seen := map[uuid.UUID]bool{current.UUID: true}
	for current.HasParentUUID() {
		parent := inv.ByUUID(current.ParentUUID)
		if parent == nil {
			break
		}
		if seen[parent.UUID] {
			break
		}
		chain = append(chain, parent)
		seen[parent.UUID] = true
		current = parent
	}
	return chain
}
