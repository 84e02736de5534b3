package roflag

import (
	"bytes"
	"context"
	"log"
	"testing"

	"github.com/nullseed/btrfsclone/internal/inventory"
	"github.com/nullseed/btrfsclone/internal/subprocess"
)

func TestReversed(t *testing.T) {
	a := &inventory.Subvolume{ID: 1}
	b := &inventory.Subvolume{ID: 2}
	c := &inventory.Subvolume{ID: 3}

	got := reversed([]*inventory.Subvolume{a, b, c})
	want := []*inventory.Subvolume{c, b, a}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reversed() = %v, want %v", got, want)
		}
	}
}

// TestSetAllSkipsAlreadyReadOnly verifies invariant 3: subvolumes already
// read-only at inventory time are never toggled, so SetAll must never
// invoke the path function for them.
func TestSetAllSkipsAlreadyReadOnly(t *testing.T) {
	var touched []string
	inv := &inventory.Inventory{Subvolumes: []*inventory.Subvolume{
		{ID: 1, Path: "writable", ReadOnly: false},
		{ID: 2, Path: "already-ro", ReadOnly: true},
	}}

	var buf bytes.Buffer
	runner := subprocess.New(log.New(&buf, "", 0), 0, true) // dry-run: Set() never execs

	path := func(sv *inventory.Subvolume) string {
		touched = append(touched, sv.Path)
		return sv.Path
	}

	if err := SetAll(context.Background(), runner, "btrfs", inv, true, path, nil); err != nil {
		t.Fatalf("SetAll() returned error: %v", err)
	}

	if len(touched) != 1 || touched[0] != "writable" {
		t.Fatalf("touched = %v, want only [\"writable\"]", touched)
	}
}
