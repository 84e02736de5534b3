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

// Package placer moves subvolumes received into a flat staging directory
// into their final hierarchical position, consistent with the source's
// parent-id graph.
package placer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/xlab/treeprint"

	"github.com/nullseed/btrfsclone/internal/inventory"
	"github.com/nullseed/btrfsclone/internal/roflag"
	"github.com/nullseed/btrfsclone/internal/subprocess"
)

const rootParentID = 5

// Place sorts the inventory by (parent_id, id) ascending so containers are
// processed before their contents, then renames each staged subvolume into
// the directory containing its goal path. Placement must be a rename, not a
// copy: a staged subvolume is a subvolume, not a plain directory, and only
// rename preserves its identity.
func Place(ctx context.Context, runner *subprocess.Runner, btrfsBin string, inv *inventory.Inventory, stagingRoot, destRoot string) error {
	ordered := make([]*inventory.Subvolume, len(inv.Subvolumes))
	copy(ordered, inv.Subvolumes)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].ParentID != ordered[j].ParentID {
			return ordered[i].ParentID < ordered[j].ParentID
		}
		return ordered[i].ID < ordered[j].ID
	})

	if runner.Verbosity >= 1 {
		runner.RunVerbose(1, "%s", renderPlan(ordered, destRoot))
	}

	placed := make(map[int]bool)
	var firstErr error
	for _, sv := range ordered {
		stagedPath := filepath.Join(stagingRoot, strconv.Itoa(sv.ID), filepath.Base(sv.Path))
		goalPath := filepath.Join(destRoot, sv.Path)

		if runner.DryRun {
			placed[sv.ID] = true
			continue
		}

		if !pathExists(stagedPath) && pathExists(goalPath) {
			placed[sv.ID] = true
			continue
		}

		ready := sv.ParentID == rootParentID || placed[sv.ParentID]
		if !pathExists(stagedPath) || !ready {
			if firstErr == nil {
				firstErr = &PlacementFailed{Subvolume: sv.Path, ParentID: sv.ParentID}
			}
			runner.RunVerbose(0, "placement error: %s: parent %d not yet placed", sv.Path, sv.ParentID)
			continue
		}

		if err := renameInto(ctx, runner, btrfsBin, sv, stagedPath, goalPath); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			runner.RunVerbose(0, "placement error: %s: %v", sv.Path, err)
			continue
		}

		placed[sv.ID] = true
		stageDir := filepath.Dir(stagedPath)
		if err := os.Remove(stageDir); err != nil {
			runner.RunVerbose(1, "non-fatal: removing empty staging directory %s: %v", stageDir, err)
		}
	}

	if !runner.DryRun {
		if err := os.Remove(stagingRoot); err != nil {
			runner.RunVerbose(1, "non-fatal: removing staging root %s: %v", stagingRoot, err)
		}
	}

	return firstErr
}

// renameInto moves a staged subvolume into the directory containing goal.
// If the subvolume was originally read-only, ro is temporarily cleared
// around the rename and then best-effort re-asserted.
func renameInto(ctx context.Context, runner *subprocess.Runner, btrfsBin string, sv *inventory.Subvolume, stagedPath, goalPath string) error {
	if err := os.MkdirAll(filepath.Dir(goalPath), 0755); err != nil {
		return fmt.Errorf("creating destination directory for %s: %w", sv.Path, err)
	}

	if sv.ReadOnly {
		if err := roflag.Set(ctx, runner, btrfsBin, stagedPath, false); err != nil {
			return fmt.Errorf("clearing ro before placing %s: %w", sv.Path, err)
		}
	}

	if err := os.Rename(stagedPath, goalPath); err != nil {
		return fmt.Errorf("renaming %s into place: %w", sv.Path, err)
	}

	if sv.ReadOnly {
		if err := roflag.Set(ctx, runner, btrfsBin, goalPath, true); err != nil {
			runner.RunVerbose(0, "non-fatal: re-asserting ro on placed %s: %v", sv.Path, err)
		}
	}
	return nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func renderPlan(ordered []*inventory.Subvolume, destRoot string) string {
	tree := treeprint.New()
	tree.SetValue(destRoot)
	nodes := map[int]treeprint.Tree{rootParentID: tree}
	for _, sv := range ordered {
		parent, ok := nodes[sv.ParentID]
		if !ok {
			parent = tree
		}
		nodes[sv.ID] = parent.AddBranch(sv.Path)
	}
	return tree.String()
}
