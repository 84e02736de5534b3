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

// Package revert provides an explicit stack of exit-action closures, run in
// LIFO order unless the caller marks the run a Success. This replaces the
// language-level exit-action facility the original tool relied on; no
// component here depends on destructor ordering across packages.
package revert

// Stack is an ordered list of cleanup actions. The zero value is ready to
// use.
type Stack struct {
	actions []func()
	success bool
}

// New returns an empty Stack.
func New() *Stack {
	return &Stack{}
}

// Add registers an action to run, in LIFO order, when Fail is called
// without a prior call to Success. A Stack on which Fail is never called
// runs nothing.
func (s *Stack) Add(action func()) {
	s.actions = append(s.actions, action)
}

// Fail runs every registered action in reverse registration order. It is
// idempotent: calling Fail after Success is a no-op, and calling it twice
// only runs the actions once.
func (s *Stack) Fail() {
	if s.success {
		return
	}
	for i := len(s.actions) - 1; i >= 0; i-- {
		s.actions[i]()
	}
	s.actions = nil
}

// Success marks the run successful, suppressing the registered actions.
// Typically deferred as `defer revertStack.Fail()` followed by
// `revertStack.Success()` at the end of the happy path.
func (s *Stack) Success() {
	s.success = true
}
