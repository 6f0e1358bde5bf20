package mesh

import "testing"

func TestMachineHasChip(t *testing.T) {
	m := NewMachine(2, 3)
	m.DeadChips[Coord{X: 1, Y: 2}] = true

	cases := []struct {
		c    Coord
		want bool
	}{
		{Coord{0, 0}, true},
		{Coord{1, 2}, false},
		{Coord{2, 0}, false},
		{Coord{0, 3}, false},
		{Coord{-1, 0}, false},
		{Coord{1, 1}, true},
	}
	for _, tc := range cases {
		if got := m.HasChip(tc.c); got != tc.want {
			t.Errorf("HasChip(%v) = %v, want %v", tc.c, got, tc.want)
		}
	}
}

func TestMachineChipsOrderAndDeadChips(t *testing.T) {
	m := NewMachine(2, 2)
	m.DeadChips[Coord{X: 0, Y: 1}] = true

	got := m.Chips()
	want := []Coord{{0, 0}, {1, 0}, {1, 1}}
	if len(got) != len(want) {
		t.Fatalf("chip count = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chips[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDistance(t *testing.T) {
	cases := []struct {
		a, b Coord
		want int
	}{
		{Coord{0, 0}, Coord{0, 0}, 0},
		{Coord{0, 0}, Coord{3, 0}, 3},
		{Coord{2, 1}, Coord{0, 4}, 5},
		{Coord{5, 5}, Coord{1, 2}, 7},
	}
	for _, tc := range cases {
		if got := Distance(tc.a, tc.b); got != tc.want {
			t.Errorf("Distance(%v, %v) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
