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

// Package rootsnapshot handles the one subvolume that btrfs send can never
// transfer directly: the true top-level. It snapshots it, sends it, and
// either dissolves the snapshot into the destination root or keeps it as a
// subvolume.
package rootsnapshot

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nullseed/btrfsclone/internal/roflag"
	"github.com/nullseed/btrfsclone/internal/subprocess"
)

const nameAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomName returns a random 12-character name suitable for the source-side
// root snapshot.
func RandomName() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating random snapshot name: %w", err)
	}
	for i, b := range buf {
		buf[i] = nameAlphabet[int(b)%len(nameAlphabet)]
	}
	return string(buf), nil
}

// Result describes the outcome of sending the top-level: the path further
// subvolume replication should treat as the destination root.
type Result struct {
	DestRoot string
}

// Send snapshots the source root, sends it with no parent or clone sources,
// and disposes of it according to keepToplevel. The returned cleanup deletes
// the source-side snapshot; it is non-nil whenever the snapshot was created,
// even if a later step failed, and the caller registers it as an exit action
// once Send returns. Send itself only performs the operation, it does not
// register anything.
func Send(ctx context.Context, runner *subprocess.Runner, btrfsBin, sourceRoot, destRoot string, keepToplevel bool) (*Result, func(), error) {
	name, err := RandomName()
	if err != nil {
		return nil, nil, err
	}
	snapPath := filepath.Join(sourceRoot, name)

	if err := runner.Run(ctx, btrfsBin, "subvolume", "snapshot", "-r", sourceRoot, snapPath); err != nil {
		return nil, nil, fmt.Errorf("snapshotting root: %w", err)
	}

	cleanup := func() {
		_ = runner.Run(ctx, btrfsBin, "subvolume", "delete", snapPath)
	}

	sendCmd := subprocess.PipelineCommand{
		Name:    btrfsBin,
		Args:    []string{"send", snapPath},
		LogName: subprocess.SanitizeLogName("btrfs-send", destRoot),
	}
	recvCmd := subprocess.PipelineCommand{
		Name:    btrfsBin,
		Args:    []string{"receive", destRoot},
		LogName: subprocess.SanitizeLogName("btrfs-recv", destRoot),
	}
	if err := runner.Pipe(ctx, sendCmd, recvCmd); err != nil {
		return nil, cleanup, fmt.Errorf("sending root snapshot: %w", err)
	}

	receivedPath := filepath.Join(destRoot, name)
	if err := roflag.Set(ctx, runner, btrfsBin, receivedPath, false); err != nil {
		return nil, cleanup, fmt.Errorf("clearing ro on received root snapshot: %w", err)
	}

	if keepToplevel {
		return &Result{DestRoot: receivedPath}, cleanup, nil
	}

	if err := mergeIntoRoot(ctx, runner, btrfsBin, receivedPath, destRoot); err != nil {
		return nil, cleanup, err
	}
	if err := runner.Run(ctx, btrfsBin, "subvolume", "delete", receivedPath); err != nil {
		return nil, cleanup, fmt.Errorf("deleting dissolved root snapshot: %w", err)
	}
	return &Result{DestRoot: destRoot}, cleanup, nil
}

// mergeIntoRoot renames every entry of the received snapshot that resides on
// the same device as the snapshot into the destination root. Entries whose
// device differs are nested subvolumes, which the planner will place later,
// and must not be moved out prematurely.
func mergeIntoRoot(ctx context.Context, runner *subprocess.Runner, btrfsBin, receivedPath, destRoot string) error {
	if runner.DryRun {
		return nil
	}
	entries, err := os.ReadDir(receivedPath)
	if err != nil {
		return fmt.Errorf("reading received root snapshot: %w", err)
	}
	snapDev, err := deviceOf(receivedPath)
	if err != nil {
		return fmt.Errorf("stat-ing received root snapshot: %w", err)
	}
	for _, entry := range entries {
		entryPath := filepath.Join(receivedPath, entry.Name())
		dev, err := deviceOf(entryPath)
		if err != nil {
			return fmt.Errorf("stat-ing %s: %w", entryPath, err)
		}
		if dev != snapDev {
			continue
		}
		dest := filepath.Join(destRoot, entry.Name())
		if err := os.Rename(entryPath, dest); err != nil {
			return fmt.Errorf("moving %s into destination root: %w", entry.Name(), err)
		}
	}
	return nil
}
