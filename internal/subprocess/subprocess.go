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

// Package subprocess drives the external btrfs, mount and umount binaries and
// wires send/receive pipelines together. It is the only package in this
// module that spawns child processes.
package subprocess

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Runner executes external commands on behalf of every other component.
// Its DryRun flag is the single switch that turns every mutating operation
// into a logged no-op, per the -n flag.
type Runner struct {
	Logger    *log.Logger
	Verbosity int
	DryRun    bool

	// LogDir is where gzip-compressed send/receive stderr logs are written
	// when Verbosity >= 2. Defaults to the current directory.
	LogDir string
}

func New(logger *log.Logger, verbosity int, dryRun bool) *Runner {
	return &Runner{Logger: logger, Verbosity: verbosity, DryRun: dryRun, LogDir: "."}
}

func (r *Runner) logVerbose(level int, format string, args ...interface{}) {
	if r.Verbosity >= level {
		r.Logger.Printf(format, args...)
	}
}

// RunVerbose logs a message at the given verbosity level. Exported so
// callers outside this package (the planner, the placer) can report
// progress through the same logger and verbosity gate as the Runner uses
// internally.
func (r *Runner) RunVerbose(level int, format string, args ...interface{}) {
	r.logVerbose(level, format, args...)
}

func (r *Runner) compose(name string, args ...string) string {
	return name + " " + strings.Join(args, " ")
}

// Run executes a mutating command to completion. In dry-run mode it only
// logs the composed command line and returns nil, per the -n contract.
func (r *Runner) Run(ctx context.Context, name string, args ...string) error {
	if r.DryRun {
		r.logVerbose(0, "+ %s", r.compose(name, args...))
		return nil
	}
	r.logVerbose(1, "+ %s", r.compose(name, args...))
	return r.RunAlways(ctx, name, args...)
}

// RunAlways executes a command to completion regardless of dry-run. It is
// for the handful of non-mutating or prerequisite operations (mounting the
// true root, for instance) that must still happen under -n so that the
// planner has real inventory data to compute and log a plan against.
func (r *Runner) RunAlways(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return &ExternalCommandFailed{
			Cmd:    r.compose(name, args...),
			Exit:   exitCode,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return nil
}

// RunOutput executes a command to completion and returns its trimmed
// standard output, for the few callers (inventory, mount UUID lookup) that
// need to parse textual replies rather than just observe success.
func (r *Runner) RunOutput(ctx context.Context, name string, args ...string) (string, error) {
	r.logVerbose(1, "+ %s", r.compose(name, args...))
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return "", &ExternalCommandFailed{
			Cmd:    r.compose(name, args...),
			Exit:   exitCode,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// PipelineCommand describes one side of a send/receive pipeline.
type PipelineCommand struct {
	Name string
	Args []string
	// LogName is the base name (without extension) used for the captured
	// stderr log file, e.g. "btrfs-send-mnt-dest-foo".
	LogName string
}

// Pipe spawns send and recv, connects send's stdout to recv's stdin, and
// waits for both to complete. Stderr of each side is either captured to a
// gzip-compressed log file (verbosity >= 2) or an in-memory buffer. In
// dry-run mode the pipeline is not executed at all; only the composed
// commands are logged.
func (r *Runner) Pipe(ctx context.Context, send, recv PipelineCommand) error {
	if r.DryRun {
		r.logVerbose(0, "+ %s | %s", r.compose(send.Name, send.Args...), r.compose(recv.Name, recv.Args...))
		return nil
	}
	r.logVerbose(1, "+ %s | %s", r.compose(send.Name, send.Args...), r.compose(recv.Name, recv.Args...))

	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("creating pipe: %w", err)
	}

	sendCmd := exec.CommandContext(ctx, send.Name, send.Args...)
	recvCmd := exec.CommandContext(ctx, recv.Name, recv.Args...)
	sendCmd.Stdout = pw
	recvCmd.Stdin = pr

	sendErrSink, sendErrClose, sendBuf, err := r.stderrSink(send.LogName)
	if err != nil {
		return fmt.Errorf("opening send log: %w", err)
	}
	defer sendErrClose()
	recvErrSink, recvErrClose, recvBuf, err := r.stderrSink(recv.LogName)
	if err != nil {
		return fmt.Errorf("opening receive log: %w", err)
	}
	defer recvErrClose()
	sendCmd.Stderr = sendErrSink
	recvCmd.Stderr = recvErrSink

	if err := recvCmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return fmt.Errorf("starting receive process: %w", err)
	}
	if err := sendCmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		_ = recvCmd.Wait()
		return fmt.Errorf("starting send process: %w", err)
	}

	// The parent's copy of the write end must be closed after hand-off so
	// the receiver observes EOF once the sender exits; the parent's copy of
	// the read end is closed too, so a sender whose receiver has died gets
	// EPIPE instead of blocking on a full pipe.
	pw.Close()
	pr.Close()

	recvErr := recvCmd.Wait()
	sendErr := sendCmd.Wait()

	if sendErr == nil && recvErr == nil {
		return nil
	}

	sendExit, recvExit := exitCodeOf(sendErr), exitCodeOf(recvErr)
	sendErrText, recvErrText := "", ""
	if sendBuf != nil {
		sendErrText = strings.TrimSpace(sendBuf.String())
	}
	if recvBuf != nil {
		recvErrText = strings.TrimSpace(recvBuf.String())
	}
	return &SendReceiveFailed{
		SendStatus: sendExit,
		RecvStatus: recvExit,
		SendLog:    r.sinkDescription(send.LogName),
		RecvLog:    r.sinkDescription(recv.LogName),
		SendBuf:    sendErrText,
		RecvBuf:    recvErrText,
	}
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

// stderrSink returns a writer for one side of a pipeline plus a closer and,
// when not logging to a file, the in-memory buffer backing the writer. At
// verbosity >= 2 stderr goes to a gzip-compressed log file (buf is nil);
// otherwise it is captured in full into an in-memory buffer for in-line error
// reporting.
func (r *Runner) stderrSink(logName string) (io.Writer, func(), *bytes.Buffer, error) {
	if r.Verbosity < 2 || logName == "" {
		buf := &bytes.Buffer{}
		return buf, func() {}, buf, nil
	}
	path := filepath.Join(r.LogDir, logName+".log.gz")
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, nil, err
	}
	gz := gzip.NewWriter(f)
	return gz, func() {
		gz.Close()
		f.Close()
	}, nil, nil
}

func (r *Runner) sinkDescription(logName string) string {
	if r.Verbosity < 2 || logName == "" {
		return ""
	}
	return filepath.Join(r.LogDir, logName+".log.gz")
}

// SanitizeLogName drops a leading slash from a destination path and replaces
// its remaining slashes with dashes, per the
// btrfs-send-<sanitized-dest>.log.gz naming convention.
func SanitizeLogName(prefix, dest string) string {
	sanitized := strings.ReplaceAll(strings.TrimPrefix(dest, "/"), "/", "-")
	return fmt.Sprintf("%s-%s", prefix, sanitized)
}
