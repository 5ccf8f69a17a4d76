// Package acmetest provides the small set of test assertion helpers
// used throughout this module's _test.go files, matching the calling
// convention of boulder's internal test package.
package acmetest

import (
	"reflect"
	"testing"
)

// Assert fails the test with msg if ok is false.
func Assert(t *testing.T, ok bool, msg string) {
	t.Helper()
	if !ok {
		t.Fatal(msg)
	}
}

// AssertNotError fails the test with msg if err is non-nil.
func AssertNotError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %s", msg, err)
	}
}

// AssertError fails the test with msg if err is nil.
func AssertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s: expected an error, got none", msg)
	}
}

// AssertEquals fails the test if a != b.
func AssertEquals(t *testing.T, a, b interface{}) {
	t.Helper()
	if a != b {
		t.Fatalf("expected %#v to equal %#v", a, b)
	}
}

// AssertDeepEquals fails the test if a and b are not deeply equal.
func AssertDeepEquals(t *testing.T, a, b interface{}) {
	t.Helper()
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected %#v to deeply equal %#v", a, b)
	}
}
