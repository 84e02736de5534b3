package planner

import (
	"path/filepath"
	"testing"

	"github.com/nullseed/btrfsclone/internal/inventory"
)

// TestParentStrategy covers S3: live with no parent, each snapshot with
// -p live -c live.
func TestParentStrategy(t *testing.T) {
	live := &inventory.Subvolume{ID: 256, CreationGen: 10, Path: "live", UUID: mustUUID(t)}
	snap1 := &inventory.Subvolume{ID: 257, CreationGen: 20, Path: "snap1", UUID: mustUUID(t), ParentUUID: live.UUID}
	snap2 := &inventory.Subvolume{ID: 258, CreationGen: 30, Path: "snap2", UUID: mustUUID(t), ParentUUID: live.UUID}

	inv := &inventory.Inventory{Subvolumes: []*inventory.Subvolume{live, snap1, snap2}}
	inv.Reindex()

	jobs := ParentStrategy{}.Plan(inv, "/mnt/src", "/mnt/dst", "/mnt/dst/staging")
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}

	if jobs[0].Parent != "" || len(jobs[0].CloneSources) != 0 {
		t.Fatalf("live job should have no parent or clone sources, got %+v", jobs[0])
	}

	wantParent := filepath.Join("/mnt/src", "live")
	for _, job := range jobs[1:] {
		if job.Parent != wantParent {
			t.Fatalf("job %+v: parent = %q, want %q", job, job.Parent, wantParent)
		}
		if len(job.CloneSources) != 1 || job.CloneSources[0] != wantParent {
			t.Fatalf("job %+v: clone sources = %v, want [%q]", job, job.CloneSources, wantParent)
		}
	}
}

// TestParentStrategyCoversWholeInventory guards against reintroducing the
// two-subvolume truncation: every subvolume in the inventory must produce a
// job, not just the first two.
func TestParentStrategyCoversWholeInventory(t *testing.T) {
	var subvols []*inventory.Subvolume
	for i := 0; i < 5; i++ {
		subvols = append(subvols, &inventory.Subvolume{ID: 256 + i, CreationGen: i, Path: "s", UUID: mustUUID(t)})
	}
	inv := &inventory.Inventory{Subvolumes: subvols}
	inv.Reindex()

	jobs := ParentStrategy{}.Plan(inv, "/mnt/src", "/mnt/dst", "/mnt/dst/staging")
	if len(jobs) != len(subvols) {
		t.Fatalf("expected a job per subvolume (%d), got %d", len(subvols), len(jobs))
	}
}

// TestAncestorChainStopsAtForeignParent ensures a parent_uuid absent from
// the inventory terminates the chain instead of erroring.
func TestAncestorChainStopsAtForeignParent(t *testing.T) {
	orphan := &inventory.Subvolume{ID: 300, Path: "orphan", UUID: mustUUID(t), ParentUUID: mustUUID(t)}
	inv := &inventory.Inventory{Subvolumes: []*inventory.Subvolume{orphan}}
	inv.Reindex()

	chain := ancestorChain(inv, orphan)
	if len(chain) != 0 {
		t.Fatalf("expected empty chain for a foreign parent, got %v", chain)
	}
}
