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

// Package inventory builds a typed inventory of the subvolumes on a source
// filesystem from the textual output of "btrfs subvolume list" and
// "btrfs subvolume show".
package inventory

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nullseed/btrfsclone/internal/subprocess"
)

// Subvolume is an immutable record describing one subvolume on the source
// filesystem at inventory time.
type Subvolume struct {
	ID           int
	Gen          int
	ToplevelID   int
	Path         string
	UUID         uuid.UUID
	ParentUUID   uuid.UUID // zero value means "none"
	ParentID     int
	CreationGen  int
	ReadOnly     bool
}

// HasParentUUID reports whether the subvolume carries a parent uuid, i.e.
// whether it is a snapshot of something rather than an original.
func (s *Subvolume) HasParentUUID() bool {
	return s.ParentUUID != uuid.Nil
}

// Inventory is the ordered set of subvolumes on a filesystem, in ascending
// creation-generation order (the order requested from the lister), indexed
// by uuid for parent-chain lookups.
type Inventory struct {
	Subvolumes []*Subvolume
	byUUID     map[uuid.UUID]*Subvolume
}

// ByUUID returns the subvolume with the given uuid, or nil if it is not
// present in this inventory (a foreign parent, for instance).
func (inv *Inventory) ByUUID(id uuid.UUID) *Subvolume {
	return inv.byUUID[id]
}

// Reindex rebuilds the uuid index from Subvolumes. Callers that build an
// Inventory by hand (tests, or any future in-process source) must call this
// before using ByUUID, Children or Roots.
func (inv *Inventory) Reindex() {
	inv.byUUID = make(map[uuid.UUID]*Subvolume, len(inv.Subvolumes))
	for _, sv := range inv.Subvolumes {
		inv.byUUID[sv.UUID] = sv
	}
}

// Children returns every subvolume whose parent_uuid equals parent's uuid.
func (inv *Inventory) Children(parent *Subvolume) []*Subvolume {
	var children []*Subvolume
	for _, sv := range inv.Subvolumes {
		if sv.HasParentUUID() && sv.ParentUUID == parent.UUID {
			children = append(children, sv)
		}
	}
	return children
}

// Roots returns every subvolume with no parent uuid (every original), plus
// every subvolume whose parent uuid is absent from this inventory (a foreign
// parent), which is planned as a root as well.
func (inv *Inventory) Roots() []*Subvolume {
	var roots []*Subvolume
	for _, sv := range inv.Subvolumes {
		if !sv.HasParentUUID() || inv.ByUUID(sv.ParentUUID) == nil {
			roots = append(roots, sv)
		}
	}
	return roots
}

// List runs "btrfs subvolume list -t --sort=ogen <mnt>" followed by a
// "btrfs subvolume show" per candidate row, and assembles the result into an
// Inventory. A line that does not parse as a subvolume header (e.g. a table
// separator) is skipped silently; any deeper failure aborts construction.
func List(ctx context.Context, runner *subprocess.Runner, btrfsBin, mountPath string) (*Inventory, error) {
	out, err := runner.RunOutput(ctx, btrfsBin, "subvolume", "list", "-t", "--sort=ogen", mountPath)
	if err != nil {
		return nil, fmt.Errorf("listing subvolumes: %w", err)
	}

	inv := &Inventory{byUUID: make(map[uuid.UUID]*Subvolume)}
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		id, err1 := strconv.Atoi(fields[0])
		gen, err2 := strconv.Atoi(fields[1])
		toplevel, err3 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil || err3 != nil {
			// Not a subvolume row (header or separator); skip silently.
			continue
		}
		path := fields[3]

		sv, err := show(ctx, runner, btrfsBin, mountPath, path, id, gen, toplevel)
		if err != nil {
			return nil, err
		}
		inv.Subvolumes = append(inv.Subvolumes, sv)
		inv.byUUID[sv.UUID] = sv
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading subvolume list: %w", err)
	}
	return inv, nil
}

func show(ctx context.Context, runner *subprocess.Runner, btrfsBin, mountPath, path string, id, gen, toplevel int) (*Subvolume, error) {
	full := path
	if !strings.HasPrefix(full, "/") {
		full = mountPath + "/" + path
	}
	out, err := runner.RunOutput(ctx, btrfsBin, "subvolume", "show", full)
	if err != nil {
		return nil, fmt.Errorf("showing subvolume %s: %w", path, err)
	}

	attrs := parseShowOutput(out)

	sv := &Subvolume{
		ID:         id,
		Gen:        gen,
		ToplevelID: toplevel,
		Path:       path,
	}

	rawUUID, ok := attrs["uuid"]
	if !ok {
		return nil, &InventoryIncomplete{Path: path, Field: "uuid"}
	}
	sv.UUID, err = uuid.Parse(rawUUID)
	if err != nil {
		return nil, &InventoryIncomplete{Path: path, Field: "uuid"}
	}

	if rawParent, ok := attrs["parent uuid"]; ok && rawParent != "-" {
		sv.ParentUUID, err = uuid.Parse(rawParent)
		if err != nil {
			return nil, &InventoryIncomplete{Path: path, Field: "parent uuid"}
		}
	}

	rawID, ok := attrs["subvolume id"]
	if !ok {
		return nil, &InventoryIncomplete{Path: path, Field: "subvolume id"}
	}
	shownID, err := strconv.Atoi(rawID)
	if err != nil {
		return nil, &InventoryIncomplete{Path: path, Field: "subvolume id"}
	}
	if shownID != id {
		return nil, &InventoryInconsistent{Path: path, ListedID: id, ShownID: shownID}
	}

	rawParentID, ok := attrs["parent id"]
	if !ok {
		return nil, &InventoryIncomplete{Path: path, Field: "parent id"}
	}
	sv.ParentID, err = strconv.Atoi(rawParentID)
	if err != nil {
		return nil, &InventoryIncomplete{Path: path, Field: "parent id"}
	}

	rawOgen, ok := attrs["gen at creation"]
	if !ok {
		return nil, &InventoryIncomplete{Path: path, Field: "gen at creation"}
	}
	sv.CreationGen, err = strconv.Atoi(rawOgen)
	if err != nil {
		return nil, &InventoryIncomplete{Path: path, Field: "gen at creation"}
	}

	flags, ok := attrs["flags"]
	if !ok {
		return nil, &InventoryIncomplete{Path: path, Field: "flags"}
	}
	sv.ReadOnly = strings.Contains(flags, "readonly")

	return sv, nil
}

// parseShowOutput turns the key/value dump of "btrfs subvolume show" into a
// lowercase-keyed map. Keys and values are separated by the first colon on
// each line and trimmed of surrounding whitespace; lines with no colon, or
// with an empty key or value, are ignored.
func parseShowOutput(out string) map[string]string {
	attrs := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, " \t")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		if key == "" || value == "" {
			continue
		}
		attrs[key] = value
	}
	return attrs
}
