package store

import "testing"

func TestObjectRefSelectors(t *testing.T) {
	p := PathRef("/org/dept")
	if p.IsID() {
		t.Errorf("PathRef(%q).IsID() = true", p.Selector)
	}
	id := IDRef("abc-123")
	if !id.IsID() {
		t.Errorf("IDRef.IsID() = false")
	}
	if got := id.ID(); got != "abc-123" {
		t.Errorf("ID() = %q, want abc-123", got)
	}
}

func TestValueRangeContains(t *testing.T) {
	cases := []struct {
		name  string
		rng   ValueRange
		value string
		want  bool
	}{
		{"exact hit", ExactRange("m"), "m", true},
		{"exact miss", ExactRange("m"), "n", false},
		{"inclusive start", ValueRange{Start: "a", End: "z", StartMode: Inclusive, EndMode: Inclusive}, "a", true},
		{"exclusive start", ValueRange{Start: "a", End: "z", StartMode: Exclusive, EndMode: Inclusive}, "a", false},
		{"inclusive end", ValueRange{Start: "a", End: "z", StartMode: Inclusive, EndMode: Inclusive}, "z", true},
		{"exclusive end", ValueRange{Start: "a", End: "z", StartMode: Inclusive, EndMode: Exclusive}, "z", false},
		{"inside", ValueRange{Start: "a", End: "z", StartMode: Exclusive, EndMode: Exclusive}, "m", true},
		{"below", ValueRange{Start: "b", End: "z", StartMode: Inclusive, EndMode: Inclusive}, "a", false},
	}
	for _, tc := range cases {
		if got := tc.rng.Contains(tc.value); got != tc.want {
			t.Errorf("%s: Contains(%q) = %v, want %v", tc.name, tc.value, got, tc.want)
		}
	}
}

func TestConsistencyLevelString(t *testing.T) {
	if Serializable.String() != "SERIALIZABLE" {
		t.Errorf("Serializable.String() = %q", Serializable.String())
	}
	if Eventual.String() != "EVENTUAL" {
		t.Errorf("Eventual.String() = %q", Eventual.String())
	}
}
