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

package inventory

import "fmt"

// InventoryIncomplete is returned when "btrfs subvolume show" omits a
// required key for a candidate subvolume.
type InventoryIncomplete struct {
	Path  string
	Field string
}

func (e *InventoryIncomplete) Error() string {
	return fmt.Sprintf("subvolume %s: missing or unparsable %q", e.Path, e.Field)
}

// InventoryInconsistent is returned when the id reported by "subvolume show"
// does not match the id reported by "subvolume list" for the same path.
type InventoryInconsistent struct {
	Path     string
	ListedID int
	ShownID  int
}

func (e *InventoryInconsistent) Error() string {
	return fmt.Sprintf("subvolume %s: listed id %d does not match shown id %d", e.Path, e.ListedID, e.ShownID)
}
