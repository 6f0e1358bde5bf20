package counters

import "testing"

func TestAllAscendingBitOrder(t *testing.T) {
	all := All()
	if len(all) != 24 {
		t.Fatalf("counter count = %d, want 24", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i] <= all[i-1] {
			t.Fatalf("counters out of order at %d: %v then %v", i, all[i-1], all[i])
		}
	}
}

func TestCategoriesArePartition(t *testing.T) {
	for _, c := range All() {
		n := 0
		if c.RouterCounter() {
			n++
		}
		if c.ReinjectorCounter() {
			n++
		}
		if c.PermanentCounter() {
			n++
		}
		if c.SourceCounter() {
			n++
		}
		if c.SinkCounter() {
			n++
		}
		if n != 1 {
			t.Errorf("%v belongs to %d categories, want exactly 1", c, n)
		}
	}
}

func TestBitMatchesValue(t *testing.T) {
	cases := []struct {
		c    Counter
		want uint32
	}{
		{LocalMulticast, 1 << 0},
		{DroppedFixedRoute, 1 << 11},
		{Reinjected, 1 << 16},
		{DeadlinesMissed, 1 << 19},
		{Sent, 1 << 24},
		{Retried, 1 << 26},
		{Received, 1 << 28},
	}
	for _, tc := range cases {
		if got := tc.c.Bit(); got != tc.want {
			t.Errorf("%v.Bit() = %#x, want %#x", tc.c, got, tc.want)
		}
	}
}

func TestFromNameRoundTrip(t *testing.T) {
	for _, c := range All() {
		got, ok := FromName(c.String())
		if !ok {
			t.Fatalf("FromName(%q) not found", c.String())
		}
		if got != c {
			t.Fatalf("FromName(%q) = %v, want %v", c.String(), got, c)
		}
	}
	if _, ok := FromName("no_such_counter"); ok {
		t.Fatalf("FromName accepted an unknown name")
	}
}
