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

package orchestrator

import "fmt"

// SameFilesystem is returned when the source and destination mounts report
// the same filesystem uuid. It is fatal and raised before any destination
// mutation.
type SameFilesystem struct {
	UUID string
}

func (e *SameFilesystem) Error() string {
	return fmt.Sprintf("source and destination are the same filesystem (uuid %s)", e.UUID)
}

// CleanupFailed wraps a failure encountered while running an exit action.
// It is non-fatal: it is reported but does not alter the run's exit status.
type CleanupFailed struct {
	Action string
	Err    error
}

func (e *CleanupFailed) Error() string {
	return fmt.Sprintf("cleanup step %q failed: %v", e.Action, e.Err)
}

func (e *CleanupFailed) Unwrap() error { return e.Err }
