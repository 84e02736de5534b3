package planner

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/nullseed/btrfsclone/internal/inventory"
)

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewRandom()
	if err != nil {
		t.Fatalf("generating uuid: %v", err)
	}
	return id
}

// TestSnapshotStrategySiblingOrdering covers S2/invariant 4: a family of
// snapshots g1 < g2 < g3 under progenitor P must be emitted as
// (P, no parent), (g3, parent=P), (g2, parent=g3), (g1, parent=g2).
func TestSnapshotStrategySiblingOrdering(t *testing.T) {
	live := &inventory.Subvolume{ID: 256, CreationGen: 10, Path: "live", UUID: mustUUID(t)}
	snap1 := &inventory.Subvolume{ID: 257, CreationGen: 20, Path: "snap1", UUID: mustUUID(t), ParentUUID: live.UUID}
	snap2 := &inventory.Subvolume{ID: 258, CreationGen: 30, Path: "snap2", UUID: mustUUID(t), ParentUUID: live.UUID}

	inv := &inventory.Inventory{Subvolumes: []*inventory.Subvolume{live, snap1, snap2}}
	inv.Reindex()

	jobs := SnapshotStrategy{}.Plan(inv, "/mnt/src", "/mnt/dst", "/mnt/dst/staging")

	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}

	if jobs[0].Subvolume != live || jobs[0].Parent != "" {
		t.Fatalf("job 0 = %+v, want live with no parent", jobs[0])
	}

	wantSnap2Parent := filepath.Join("/mnt/dst/staging", "256", "live")
	if jobs[1].Subvolume != snap2 || jobs[1].Parent != wantSnap2Parent {
		t.Fatalf("job 1 = %+v, want snap2 with parent %s", jobs[1], wantSnap2Parent)
	}

	wantSnap1Parent := filepath.Join("/mnt/dst/staging", "258", "snap2")
	if jobs[2].Subvolume != snap1 || jobs[2].Parent != wantSnap1Parent {
		t.Fatalf("job 2 = %+v, want snap1 with parent %s", jobs[2], wantSnap1Parent)
	}
}

// TestSnapshotStrategyMultipleRoots covers an inventory with two originals
// (absent parent_uuid): each root family is planned independently, roots in
// ascending (creation_gen, id) order.
func TestSnapshotStrategyMultipleRoots(t *testing.T) {
	a := &inventory.Subvolume{ID: 256, CreationGen: 5, Path: "a", UUID: mustUUID(t)}
	b := &inventory.Subvolume{ID: 300, CreationGen: 6, Path: "b", UUID: mustUUID(t)}

	inv := &inventory.Inventory{Subvolumes: []*inventory.Subvolume{a, b}}
	inv.Reindex()

	jobs := SnapshotStrategy{}.Plan(inv, "/mnt/src", "/mnt/dst", "/mnt/dst/staging")
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].Subvolume != a || jobs[1].Subvolume != b {
		t.Fatalf("expected roots in (creation_gen, id) order, got %+v then %+v", jobs[0].Subvolume, jobs[1].Subvolume)
	}
}
