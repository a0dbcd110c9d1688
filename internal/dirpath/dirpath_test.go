package dirpath

import (
	"reflect"
	"testing"
)

func TestJoin(t *testing.T) {
	if got := Join("/", "org"); got != "/org" {
		t.Errorf("Join(/, org) = %q", got)
	}
	if got := Join("/org/dept", "team"); got != "/org/dept/team" {
		t.Errorf("Join(/org/dept, team) = %q", got)
	}
}

func TestSplit(t *testing.T) {
	if got := Split("/"); got != nil {
		t.Errorf("Split(/) = %v, want nil", got)
	}
	want := []string{"org", "dept", "team"}
	if got := Split("/org/dept/team"); !reflect.DeepEqual(got, want) {
		t.Errorf("Split = %v, want %v", got, want)
	}
	if got := Split("/org/"); !reflect.DeepEqual(got, []string{"org"}) {
		t.Errorf("Split with trailing slash = %v", got)
	}
}

func TestTrailingSegment(t *testing.T) {
	cases := map[string]string{
		"/org/dept/team/e1": "e1",
		"/org":              "org",
		"/org/":             "org",
		"e1":                "e1",
		"/":                 "",
	}
	for path, want := range cases {
		if got := TrailingSegment(path); got != want {
			t.Errorf("TrailingSegment(%q) = %q, want %q", path, got, want)
		}
	}
}
