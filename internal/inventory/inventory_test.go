package inventory

import (
	"testing"

	"github.com/google/uuid"
)

func mustTestUUID(t *testing.T, seed string) uuid.UUID {
	t.Helper()
	return uuid.NewMD5(uuid.NameSpaceOID, []byte(seed))
}

func TestParseShowOutput(t *testing.T) {
	out := `subvolume-path
	Name: 			my-snapshot
	UUID: 			11111111-1111-1111-1111-111111111111
	Parent UUID: 		-
	Received UUID: 		-
	Creation time: 		2023-01-01 00:00:00 +0000
	Subvolume ID: 		257
	Generation: 		100
	Gen at creation: 	90
	Parent ID: 		5
	Top level ID: 		5
	Flags: 			readonly
`
	attrs := parseShowOutput(out)

	cases := map[string]string{
		"uuid":          "11111111-1111-1111-1111-111111111111",
		"subvolume id":  "257",
		"parent id":     "5",
		"gen at creation": "90",
		"flags":         "readonly",
	}
	for key, want := range cases {
		if got := attrs[key]; got != want {
			t.Errorf("attrs[%q] = %q, want %q", key, got, want)
		}
	}
	if v, ok := attrs["parent uuid"]; !ok || v != "-" {
		t.Errorf("attrs[\"parent uuid\"] = %q, ok=%v, want \"-\"", v, ok)
	}
}

func TestSubvolumeHasParentUUID(t *testing.T) {
	sv := &Subvolume{}
	if sv.HasParentUUID() {
		t.Fatalf("zero-value subvolume should report no parent uuid")
	}
}

func TestInventoryChildrenAndRoots(t *testing.T) {
	root := &Subvolume{ID: 1, UUID: mustTestUUID(t, "1")}
	child := &Subvolume{ID: 2, UUID: mustTestUUID(t, "2"), ParentUUID: root.UUID}

	inv := &Inventory{Subvolumes: []*Subvolume{root, child}}
	inv.Reindex()

	roots := inv.Roots()
	if len(roots) != 1 || roots[0] != root {
		t.Fatalf("Roots() = %v, want [root]", roots)
	}

	children := inv.Children(root)
	if len(children) != 1 || children[0] != child {
		t.Fatalf("Children(root) = %v, want [child]", children)
	}
}
