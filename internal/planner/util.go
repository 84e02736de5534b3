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
	"fmt"
	"os"

	"github.com/nullseed/btrfsclone/internal/subprocess"
)

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ensureDir creates dir if it does not already exist. Dry-run callers must
// tolerate a non-existent destination state, so this is a no-op when the
// runner is in dry-run mode.
func ensureDir(runner *subprocess.Runner, dir string) error {
	if runner.DryRun {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating staging directory %s: %w", dir, err)
	}
	return nil
}
