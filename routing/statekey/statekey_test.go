package statekey

import (
	"testing"
	"time"
)

func TestEncodeAppliesDefaults(t *testing.T) {
	got := Encode(Request{InputType: "text"}, "low", "morning")
	if !hasFragment(got, "complexity:medium") || !hasFragment(got, "domain:general") {
		t.Errorf("Encode() = %q, expected defaults applied", got)
	}
}

func TestEncodeIsOrderIndependent(t *testing.T) {
	a := Encode(Request{InputType: "text", Complexity: "high", Domain: "legal"}, "high", "night")
	b := Encode(Request{Domain: "legal", InputType: "text", Complexity: "high"}, "high", "night")
	if a != b {
		t.Errorf("Encode() not order-independent: %q != %q", a, b)
	}
}

func TestEncodeHasSchemaTag(t *testing.T) {
	got := Encode(Request{InputType: "text"}, "low", "morning")
	if SchemaOf(got) != SchemaTag {
		t.Errorf("SchemaOf(%q) = %q, want %q", got, SchemaOf(got), SchemaTag)
	}
}

func TestLoadBucket(t *testing.T) {
	cases := []struct {
		inFlight int
		want     string
	}{
		{0, "low"},
		{5, "low"},
		{6, "medium"},
		{20, "high"},
	}
	for _, c := range cases {
		if got := LoadBucket(c.inFlight, 5, 15); got != c.want {
			t.Errorf("LoadBucket(%d) = %q, want %q", c.inFlight, got, c.want)
		}
	}
}

func TestTimeBucket(t *testing.T) {
	cases := []struct {
		hour int
		want string
	}{
		{6, "morning"},
		{13, "afternoon"},
		{19, "evening"},
		{2, "night"},
	}
	for _, c := range cases {
		tm := time.Date(2026, 1, 1, c.hour, 0, 0, 0, time.UTC)
		if got := TimeBucket(tm); got != c.want {
			t.Errorf("TimeBucket(hour=%d) = %q, want %q", c.hour, got, c.want)
		}
	}
}

func hasFragment(encoded, fragment string) bool {
	for _, f := range splitFragments(encoded) {
		if f == fragment {
			return true
		}
	}
	return false
}

func splitFragments(encoded string) []string {
	// strip schema tag prefix "v1:" then split on "|"
	rest := encoded[len(SchemaTag)+1:]
	var out []string
	start := 0
	for i := 0; i <= len(rest); i++ {
		if i == len(rest) || rest[i] == '|' {
			out = append(out, rest[start:i])
			start = i + 1
		}
	}
	return out
}
