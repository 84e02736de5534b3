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

// Package mountutil mounts and unmounts the true root of a btrfs filesystem
// (subvolid=5) via the external mount/umount utilities, and reads a
// filesystem's uuid via "btrfs filesystem show".
package mountutil

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/nullseed/btrfsclone/internal/subprocess"
)

// Handle is a (uuid, temporary-directory) pair bound to the true root of a
// btrfs filesystem.
type Handle struct {
	UUID string
	Dir  string
}

// FilesystemUUID runs "btrfs filesystem show <mnt>" and extracts the uuid
// from its first "uuid: <uuid>" line.
func FilesystemUUID(ctx context.Context, runner *subprocess.Runner, btrfsBin, mountPath string) (string, error) {
	out, err := runner.RunOutput(ctx, btrfsBin, "filesystem", "show", mountPath)
	if err != nil {
		return "", fmt.Errorf("reading filesystem info for %s: %w", mountPath, err)
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		idx := strings.Index(strings.ToLower(line), "uuid:")
		if idx < 0 {
			continue
		}
		return strings.TrimSpace(line[idx+len("uuid:"):]), nil
	}
	return "", fmt.Errorf("no uuid reported for filesystem %s", mountPath)
}

// MountRoot mounts the true root (subvolid=5) of the filesystem identified
// by fsUUID onto a freshly created temporary directory, so replication can
// proceed even when the caller originally pointed us at a non-root
// subvolume. Mounting is not one of the mutating operations -n suppresses:
// the planner needs a real mount to build a real inventory and log a
// meaningful plan, so this always executes.
func MountRoot(ctx context.Context, runner *subprocess.Runner, fsUUID string) (*Handle, error) {
	dir, err := os.MkdirTemp("", "btrfsclone-root-")
	if err != nil {
		return nil, fmt.Errorf("creating temporary mount directory: %w", err)
	}
	if err := runner.RunAlways(ctx, "mount", "-o", "subvolid=5", "UUID="+fsUUID, dir); err != nil {
		os.Remove(dir)
		return nil, fmt.Errorf("mounting root of filesystem %s: %w", fsUUID, err)
	}
	return &Handle{UUID: fsUUID, Dir: dir}, nil
}

// Release lazily unmounts the handle's directory and removes it. Failures
// are non-fatal (CleanupFailed in the caller's taxonomy): report but do not
// alter the run's exit status.
func (h *Handle) Release(ctx context.Context, runner *subprocess.Runner) error {
	if h.Dir == "" {
		return nil
	}
	if err := runner.RunAlways(ctx, "umount", "-l", h.Dir); err != nil {
		return fmt.Errorf("unmounting %s: %w", h.Dir, err)
	}
	if err := os.Remove(h.Dir); err != nil {
		return fmt.Errorf("removing mount directory %s: %w", h.Dir, err)
	}
	return nil
}
