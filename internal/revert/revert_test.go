package revert

import "testing"

func TestFailRunsActionsInReverseOrder(t *testing.T) {
	var order []int
	s := New()
	s.Add(func() { order = append(order, 1) })
	s.Add(func() { order = append(order, 2) })
	s.Add(func() { order = append(order, 3) })

	s.Fail()

	want := []int{3, 2, 1}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestSuccessSuppressesActions(t *testing.T) {
	ran := false
	s := New()
	s.Add(func() { ran = true })
	s.Success()
	s.Fail()

	if ran {
		t.Fatalf("expected Success() to suppress registered actions")
	}
}

func TestFailIsIdempotent(t *testing.T) {
	count := 0
	s := New()
	s.Add(func() { count++ })
	s.Fail()
	s.Fail()

	if count != 1 {
		t.Fatalf("expected actions to run exactly once, ran %d times", count)
	}
}
