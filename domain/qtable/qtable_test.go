package qtable

import "testing"

func TestMaxForStateEmpty(t *testing.T) {
	tbl := Table{}
	max, found := tbl.MaxForState("v1:input_type:text")
	if found || max != 0 {
		t.Errorf("MaxForState() = %v, %v, want 0, false", max, found)
	}
}

func TestMaxForStatePicksMax(t *testing.T) {
	tbl := Table{
		{State: "s1", Action: "a"}: 0.2,
		{State: "s1", Action: "b"}: 0.9,
		{State: "s2", Action: "a"}: 5.0,
	}
	max, found := tbl.MaxForState("s1")
	if !found || max != 0.9 {
		t.Errorf("MaxForState() = %v, %v, want 0.9, true", max, found)
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	tbl := Table{{State: "s", Action: "a"}: 1.0}
	snap := tbl.Snapshot()
	snap[Key{State: "s", Action: "a"}] = 99.0
	if tbl[Key{State: "s", Action: "a"}] != 1.0 {
		t.Fatal("mutating the snapshot mutated the original table")
	}
}
