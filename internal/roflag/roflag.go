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

// Package roflag queries and mutates the btrfs "ro" subvolume property.
package roflag

import (
	"context"
	"fmt"
	"strings"

	"github.com/nullseed/btrfsclone/internal/inventory"
	"github.com/nullseed/btrfsclone/internal/subprocess"
)

// Get reads the ro property of the subvolume at path.
func Get(ctx context.Context, runner *subprocess.Runner, btrfsBin, path string) (bool, error) {
	out, err := runner.RunOutput(ctx, btrfsBin, "property", "get", "-ts", path, "ro")
	if err != nil {
		return false, fmt.Errorf("getting ro property of %s: %w", path, err)
	}
	return strings.Contains(out, "ro=true"), nil
}

// Set writes the ro property of the subvolume at path.
func Set(ctx context.Context, runner *subprocess.Runner, btrfsBin, path string, value bool) error {
	v := "false"
	if value {
		v = "true"
	}
	if err := runner.Run(ctx, btrfsBin, "property", "set", "-ts", path, "ro", v); err != nil {
		return fmt.Errorf("setting ro=%s on %s: %w", v, path, err)
	}
	return nil
}

// PathFunc resolves a subvolume to the filesystem path SetAll should operate
// on, letting callers apply the discipline to either source paths or staged
// destination paths.
type PathFunc func(*inventory.Subvolume) string

// SetAll applies value to every subvolume whose inventoried ro was false;
// subvolumes already read-only are left untouched so user state is never
// clobbered. Forward application (locking, value=true) iterates in
// inventory order and fails fast. Reversal (value=false) iterates in
// reverse and tolerates individual failures, logging and continuing,
// because by the time restoration runs the filesystem may already be in an
// inconsistent state and best-effort cleanup is preferable to an early
// abort.
func SetAll(ctx context.Context, runner *subprocess.Runner, btrfsBin string, inv *inventory.Inventory, value bool, path PathFunc, onError func(*inventory.Subvolume, error)) error {
	subvols := inv.Subvolumes
	if !value {
		subvols = reversed(subvols)
	}
	for _, sv := range subvols {
		if sv.ReadOnly {
			continue
		}
		p := path(sv)
		if err := Set(ctx, runner, btrfsBin, p, value); err != nil {
			if value {
				return err
			}
			if onError != nil {
				onError(sv, err)
			}
		}
	}
	return nil
}

func reversed(in []*inventory.Subvolume) []*inventory.Subvolume {
	out := make([]*inventory.Subvolume, len(in))
	for i, sv := range in {
		out[len(in)-1-i] = sv
	}
	return out
}
