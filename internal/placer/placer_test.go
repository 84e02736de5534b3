package placer

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/nullseed/btrfsclone/internal/inventory"
	"github.com/nullseed/btrfsclone/internal/subprocess"
)

// TestPlaceNested covers S4: a nested subvolume a/b is placed only after
// its container a, and both end up at their source paths.
func TestPlaceNested(t *testing.T) {
	stagingRoot := t.TempDir()
	destRoot := t.TempDir()

	mustMkdir(t, filepath.Join(stagingRoot, "256", "a"))
	mustMkdir(t, filepath.Join(stagingRoot, "257", "b"))

	inv := &inventory.Inventory{Subvolumes: []*inventory.Subvolume{
		{ID: 256, ParentID: 5, Path: "a"},
		{ID: 257, ParentID: 256, Path: "a/b"},
	}}

	var logBuf bytes.Buffer
	runner := subprocess.New(log.New(&logBuf, "", 0), 0, false)

	if err := Place(context.Background(), runner, "btrfs", inv, stagingRoot, destRoot); err != nil {
		t.Fatalf("Place() returned error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(destRoot, "a")); err != nil {
		t.Fatalf("expected %s to exist: %v", filepath.Join(destRoot, "a"), err)
	}
	if _, err := os.Stat(filepath.Join(destRoot, "a", "b")); err != nil {
		t.Fatalf("expected %s to exist: %v", filepath.Join(destRoot, "a", "b"), err)
	}
	if _, err := os.Stat(filepath.Join(stagingRoot, "256")); !os.IsNotExist(err) {
		t.Fatalf("expected staging directory for 256 to be removed, err=%v", err)
	}
}

// TestPlaceParentNotYetPlaced covers PlacementFailed: a subvolume whose
// container never shows up is reported as a *PlacementFailed error.
func TestPlaceParentNotYetPlaced(t *testing.T) {
	stagingRoot := t.TempDir()
	destRoot := t.TempDir()

	mustMkdir(t, filepath.Join(stagingRoot, "400", "orphan"))

	inv := &inventory.Inventory{Subvolumes: []*inventory.Subvolume{
		{ID: 400, ParentID: 999, Path: "missing/orphan"},
	}}

	var logBuf bytes.Buffer
	runner := subprocess.New(log.New(&logBuf, "", 0), 0, false)

	err := Place(context.Background(), runner, "btrfs", inv, stagingRoot, destRoot)
	if err == nil {
		t.Fatalf("expected a PlacementFailed error")
	}
	if _, ok := err.(*PlacementFailed); !ok {
		t.Fatalf("expected *PlacementFailed, got %T: %v", err, err)
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
}
