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

// Package orchestrator wires the process driver, inventory, read-only
// discipline, root snapshot handler, replication planner and tree placer
// together into a single run of the clone operation.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/nullseed/btrfsclone/internal/inventory"
	"github.com/nullseed/btrfsclone/internal/mountutil"
	"github.com/nullseed/btrfsclone/internal/placer"
	"github.com/nullseed/btrfsclone/internal/planner"
	"github.com/nullseed/btrfsclone/internal/revert"
	"github.com/nullseed/btrfsclone/internal/roflag"
	"github.com/nullseed/btrfsclone/internal/rootsnapshot"
	"github.com/nullseed/btrfsclone/internal/subprocess"
)

// State names the orchestrator's state machine. The run moves strictly
// forward through these states; any failure unwinds through the registered
// exit actions without attempting to resume.
type State int

const (
	Init State = iota
	MountsAcquired
	RoLocked
	RootSent
	SubvolsSent
	Finalized
)

func (s State) String() string {
	switch s {
	case Init:
		return "Init"
	case MountsAcquired:
		return "MountsAcquired"
	case RoLocked:
		return "RoLocked"
	case RootSent:
		return "RootSent"
	case SubvolsSent:
		return "SubvolsSent"
	case Finalized:
		return "Finalized"
	default:
		return "Unknown"
	}
}

// Config is the explicit, process-wide-free configuration record passed
// into a run; every component receives what it needs from here rather than
// reaching into package-level state.
type Config struct {
	OldMount string
	NewMount string

	BtrfsBin string
	DryRun   bool
	Strategy string // "parent" or "snapshot"
	SnapBase string // fixed staging directory name; empty means random
	Keep     bool   // -t: keep the top-level as a subvolume
	Force    bool   // downgrade the same-filesystem guard to a warning

	Verbosity int
	Logger    *log.Logger
}

// Run drives a full clone of Config.OldMount onto Config.NewMount.
func Run(ctx context.Context, cfg Config) error {
	state := Init
	runner := subprocess.New(cfg.Logger, cfg.Verbosity, cfg.DryRun)

	stack := revert.New()
	defer stack.Fail()

	oldUUID, err := mountutil.FilesystemUUID(ctx, runner, cfg.BtrfsBin, cfg.OldMount)
	if err != nil {
		return fmt.Errorf("reading source filesystem uuid: %w", err)
	}
	newUUID, err := mountutil.FilesystemUUID(ctx, runner, cfg.BtrfsBin, cfg.NewMount)
	if err != nil {
		return fmt.Errorf("reading destination filesystem uuid: %w", err)
	}
	if oldUUID == newUUID {
		if !cfg.Force {
			return &SameFilesystem{UUID: oldUUID}
		}
		cfg.Logger.Printf("WARNING: source and destination share uuid %s, continuing because --force was given", oldUUID)
	}

	sourceHandle, err := mountutil.MountRoot(ctx, runner, oldUUID)
	if err != nil {
		return fmt.Errorf("mounting true root of source: %w", err)
	}
	stack.Add(func() {
		if err := sourceHandle.Release(ctx, runner); err != nil {
			cfg.Logger.Print(&CleanupFailed{Action: "unmount source root", Err: err})
		}
	})

	destHandle, err := mountutil.MountRoot(ctx, runner, newUUID)
	if err != nil {
		return fmt.Errorf("mounting true root of destination: %w", err)
	}
	stack.Add(func() {
		if err := destHandle.Release(ctx, runner); err != nil {
			cfg.Logger.Print(&CleanupFailed{Action: "unmount destination root", Err: err})
		}
	})
	state = MountsAcquired

	inv, err := inventory.List(ctx, runner, cfg.BtrfsBin, sourceHandle.Dir)
	if err != nil {
		return fmt.Errorf("building source inventory (state %s): %w", state, err)
	}

	sourcePath := func(sv *inventory.Subvolume) string {
		return filepath.Join(sourceHandle.Dir, sv.Path)
	}
	if err := roflag.SetAll(ctx, runner, cfg.BtrfsBin, inv, true, sourcePath, nil); err != nil {
		return fmt.Errorf("acquiring read-only lock (state %s): %w", state, err)
	}
	stack.Add(func() {
		err := roflag.SetAll(ctx, runner, cfg.BtrfsBin, inv, false, sourcePath, func(sv *inventory.Subvolume, err error) {
			cfg.Logger.Print(&CleanupFailed{Action: fmt.Sprintf("restore ro on %s", sv.Path), Err: err})
		})
		if err != nil {
			cfg.Logger.Print(&CleanupFailed{Action: "restore ro flags", Err: err})
		}
	})
	state = RoLocked

	result, cleanupSnap, err := rootsnapshot.Send(ctx, runner, cfg.BtrfsBin, sourceHandle.Dir, destHandle.Dir, cfg.Keep)
	if cleanupSnap != nil {
		stack.Add(func() {
			cleanupSnap()
		})
	}
	if err != nil {
		return fmt.Errorf("sending root (state %s): %w", state, err)
	}
	state = RootSent

	stagingName := cfg.SnapBase
	if stagingName == "" {
		stagingName, err = rootsnapshot.RandomName()
		if err != nil {
			return fmt.Errorf("generating staging directory name: %w", err)
		}
	}
	stagingRoot := filepath.Join(result.DestRoot, stagingName)

	var strategy planner.Strategy
	switch cfg.Strategy {
	case "parent":
		strategy = planner.ParentStrategy{}
	default:
		strategy = planner.SnapshotStrategy{}
	}

	jobs := strategy.Plan(inv, sourceHandle.Dir, result.DestRoot, stagingRoot)
	if err := planner.Run(ctx, runner, cfg.BtrfsBin, jobs); err != nil {
		return fmt.Errorf("replicating subvolumes (state %s): %w", state, err)
	}
	state = SubvolsSent

	var placementErr error
	if _, isSnapshotStrategy := strategy.(planner.SnapshotStrategy); isSnapshotStrategy {
		placementErr = placer.Place(ctx, runner, cfg.BtrfsBin, inv, stagingRoot, result.DestRoot)
	}
	state = Finalized

	if placementErr != nil {
		return fmt.Errorf("placing subvolumes (state %s): %w", state, placementErr)
	}
	return nil
}
