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

// Package cmd implements the btrfsclone command line, wiring flags onto an
// orchestrator.Config and handing off to internal/orchestrator.
package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/nullseed/btrfsclone/internal/orchestrator"
)

var (
	logger = log.New(os.Stderr, "", log.LstdFlags)

	verbosity int
	btrfsBin  string
	dryRun    bool
	strategy  string
	snapBase  string
	keep      bool
	force     bool
)

// Execute runs the root command and exits the process with a non-zero
// status on any unrecovered error, per the external interface's exit-code
// contract.
func Execute(version string) {
	if err := NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

// NewRootCommand builds the single flat command this tool exposes: no
// subcommands, two positional mount points, and the flag set from the
// external interface.
func NewRootCommand(version string) *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           "btrfsclone [flags] <old> <new>",
		Short:         "Clone an entire btrfs filesystem onto another via send/receive",
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       version,
		Args:          cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClone(cmd, args[0], args[1])
		},
	}

	flags := rootCommand.Flags()
	flags.CountVarP(&verbosity, "verbose", "v", "increase verbosity (repeatable)")
	flags.StringVarP(&btrfsBin, "btrfs-bin", "B", "btrfs", "path to the btrfs utility")
	flags.BoolVarP(&dryRun, "dry-run", "n", false, "log intent without executing mutating commands")
	flags.StringVarP(&strategy, "strategy", "s", "snapshot", "replication strategy: parent or snapshot")
	flags.StringVar(&snapBase, "snap-base", "", "fixed name for the destination staging directory (default: random)")
	flags.BoolVarP(&keep, "toplevel", "t", false, "keep the cloned top-level as a subvolume instead of merging it into the destination root")
	flags.BoolVar(&force, "force", false, "continue even if source and destination report the same filesystem uuid")

	return rootCommand
}

func runClone(cmd *cobra.Command, oldMount, newMount string) error {
	if strategy != "parent" && strategy != "snapshot" {
		return fmt.Errorf("invalid strategy %q: must be \"parent\" or \"snapshot\"", strategy)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	cfg := orchestrator.Config{
		OldMount:  oldMount,
		NewMount:  newMount,
		BtrfsBin:  btrfsBin,
		DryRun:    dryRun,
		Strategy:  strategy,
		SnapBase:  snapBase,
		Keep:      keep,
		Force:     force,
		Verbosity: verbosity,
		Logger:    logger,
	}

	return orchestrator.Run(ctx, cfg)
}
