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

// Package planner derives, from a subvolume inventory and a selected
// strategy, the ordered sequence of send/receive jobs that replicate the
// source filesystem onto the destination.
package planner

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/nullseed/btrfsclone/internal/inventory"
	"github.com/nullseed/btrfsclone/internal/roflag"
	"github.com/nullseed/btrfsclone/internal/subprocess"
)

// Job is one replication step: send Source (from the mounted source
// filesystem) into ReceiveDir, optionally against Parent and a set of
// CloneSources, all identified by their staged or final filesystem paths.
type Job struct {
	Subvolume    *inventory.Subvolume
	Source       string
	ReceiveDir   string
	Parent       string
	CloneSources []string
}

// Strategy produces the ordered job list for an inventory. destRoot is the
// final destination root; stagingRoot is the flat staging area used by
// strategies that cannot place subvolumes directly (SnapshotStrategy).
// ParentStrategy ignores stagingRoot and receives straight into destRoot.
type Strategy interface {
	Plan(inv *inventory.Inventory, sourceRoot, destRoot, stagingRoot string) []Job
}

// Run executes every job in order against runner, clearing ro on each
// successfully received copy unless the originating subvolume was already
// read-only. It is shared by both strategies: only Plan differs between
// them.
func Run(ctx context.Context, runner *subprocess.Runner, btrfsBin string, jobs []Job) error {
	for _, job := range jobs {
		dest := filepath.Join(job.ReceiveDir, filepath.Base(job.Subvolume.Path))
		if !runner.DryRun {
			if pathExists(dest) {
				runner.RunVerbose(1, "skipping %s: %s already staged", job.Subvolume.Path, dest)
				continue
			}
		}

		if err := ensureDir(runner, job.ReceiveDir); err != nil {
			return err
		}

		sendArgs := []string{"send"}
		if job.Parent != "" {
			sendArgs = append(sendArgs, "-p", job.Parent)
		}
		for _, cs := range job.CloneSources {
			sendArgs = append(sendArgs, "-c", cs)
		}
		sendArgs = append(sendArgs, job.Source)

		sendCmd := subprocess.PipelineCommand{
			Name:    btrfsBin,
			Args:    sendArgs,
			LogName: subprocess.SanitizeLogName("btrfs-send", dest),
		}
		recvCmd := subprocess.PipelineCommand{
			Name:    btrfsBin,
			Args:    []string{"receive", job.ReceiveDir},
			LogName: subprocess.SanitizeLogName("btrfs-recv", dest),
		}
		if err := runner.Pipe(ctx, sendCmd, recvCmd); err != nil {
			return fmt.Errorf("replicating %s: %w", job.Subvolume.Path, err)
		}

		if !job.Subvolume.ReadOnly {
			if err := roflag.Set(ctx, runner, btrfsBin, dest, false); err != nil {
				return fmt.Errorf("clearing ro on received copy of %s: %w", job.Subvolume.Path, err)
			}
		}
	}
	return nil
}
