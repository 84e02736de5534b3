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

package subprocess

import "fmt"

// ExternalCommandFailed is returned when a spawned tool exits non-zero.
type ExternalCommandFailed struct {
	Cmd    string
	Exit   int
	Stderr string
	Err    error
}

func (e *ExternalCommandFailed) Error() string {
	return fmt.Sprintf("command failed (exit %d): %s: %s", e.Exit, e.Cmd, e.Stderr)
}

func (e *ExternalCommandFailed) Unwrap() error { return e.Err }

// SendReceiveFailed is returned when either side of a send/receive pipeline
// fails. SendLog/RecvLog name a captured gzip log file when verbosity >= 2;
// below that, SendBuf/RecvBuf hold the stderr captured in memory so
// the failure message is still useful without a log file on disk.
type SendReceiveFailed struct {
	SendStatus int
	RecvStatus int
	SendLog    string
	RecvLog    string
	SendBuf    string
	RecvBuf    string
}

func (e *SendReceiveFailed) Error() string {
	msg := fmt.Sprintf("send/receive failed (send exit %d, receive exit %d)", e.SendStatus, e.RecvStatus)
	if e.SendLog != "" {
		msg += fmt.Sprintf("; send log: %s", e.SendLog)
	} else if e.SendBuf != "" {
		msg += fmt.Sprintf("; send stderr: %s", e.SendBuf)
	}
	if e.RecvLog != "" {
		msg += fmt.Sprintf("; receive log: %s", e.RecvLog)
	} else if e.RecvBuf != "" {
		msg += fmt.Sprintf("; receive stderr: %s", e.RecvBuf)
	}
	return msg
}
