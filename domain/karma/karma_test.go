package karma

import "testing"

func TestNormalized(t *testing.T) {
	cases := []struct {
		score float64
		want  float64
	}{
		{0, -1},
		{0.5, 0},
		{1, 1},
	}
	for _, c := range cases {
		e := Entry{Score: c.score}
		if got := e.Normalized(); got != c.want {
			t.Errorf("Normalized(%v) = %v, want %v", c.score, got, c.want)
		}
	}
}

func TestPushSampleEvictsOldest(t *testing.T) {
	e := Entry{}
	for i := 0; i < 5; i++ {
		e.PushSample(float64(i), 3)
	}
	if len(e.Window) != 3 {
		t.Fatalf("len(Window) = %d, want 3", len(e.Window))
	}
	if e.Window[0] != 2 {
		t.Errorf("Window[0] = %v, want 2 (oldest evicted)", e.Window[0])
	}
}

func TestStdDevOfConstantSeriesIsZero(t *testing.T) {
	e := Entry{Window: []float64{0.5, 0.5, 0.5}}
	if got := e.StdDev(); got != 0 {
		t.Errorf("StdDev() = %v, want 0", got)
	}
}

func TestStdDevEmptyWindow(t *testing.T) {
	e := Entry{}
	if got := e.StdDev(); got != 0 {
		t.Errorf("StdDev() = %v, want 0", got)
	}
}
