package envutil

import (
	"reflect"
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{raw: "45s", want: 45 * time.Second},
		{raw: "7", want: 7 * time.Second},
		{raw: "soon", want: time.Second},
	}
	for _, tc := range tests {
		t.Setenv("ENVUTIL_TEST_DUR", tc.raw)
		if got := Duration("ENVUTIL_TEST_DUR", time.Second); got != tc.want {
			t.Fatalf("Duration(%q): want=%s got=%s", tc.raw, tc.want, got)
		}
	}
}

func TestBoolAndList(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_BOOL", "off")
	if Bool("ENVUTIL_TEST_BOOL", true) {
		t.Fatalf("Bool(off): want=false")
	}

	t.Setenv("ENVUTIL_TEST_BOOL", "maybe")
	if !Bool("ENVUTIL_TEST_BOOL", true) {
		t.Fatalf("Bool(maybe): want the default")
	}

	t.Setenv("ENVUTIL_TEST_LIST", " a, ,b ")
	if got, want := List("ENVUTIL_TEST_LIST", nil), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("List: want=%q got=%q", want, got)
	}
}

func TestFloat(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_FLOAT", "0.25")
	if got := Float("ENVUTIL_TEST_FLOAT", 1); got != 0.25 {
		t.Fatalf("Float(0.25): got=%v", got)
	}

	t.Setenv("ENVUTIL_TEST_FLOAT", "half")
	if got := Float("ENVUTIL_TEST_FLOAT", 1); got != 1.0 {
		t.Fatalf("Float(half): want the default, got=%v", got)
	}
}
