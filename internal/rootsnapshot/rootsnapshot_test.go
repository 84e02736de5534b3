package rootsnapshot

import (
	"strings"
	"testing"
)

func TestRandomNameLengthAndAlphabet(t *testing.T) {
	name, err := RandomName()
	if err != nil {
		t.Fatalf("RandomName() returned error: %v", err)
	}
	if len(name) != 12 {
		t.Fatalf("RandomName() = %q, want length 12", name)
	}
	for _, r := range name {
		if !strings.ContainsRune(nameAlphabet, r) {
			t.Fatalf("RandomName() produced out-of-alphabet rune %q in %q", r, name)
		}
	}
}

func TestRandomNameIsNotConstant(t *testing.T) {
	a, err := RandomName()
	if err != nil {
		t.Fatalf("RandomName() returned error: %v", err)
	}
	b, err := RandomName()
	if err != nil {
		t.Fatalf("RandomName() returned error: %v", err)
	}
	if a == b {
		t.Skipf("two random names collided (a=%q); astronomically unlikely but not a bug", a)
	}
}
