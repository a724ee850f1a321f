package tester

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func message(msgAndArgs []any) string {
	if len(msgAndArgs) == 0 {
		return ""
	}
	if format, ok := msgAndArgs[0].(string); ok && len(msgAndArgs) > 1 {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprint(msgAndArgs[0])
}

// Eq asserts that got == want using reflect.DeepEqual for non-comparable types.
func Eq[T any](t *testing.T, got, want T, msgAndArgs ...any) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		if msg := message(msgAndArgs); msg != "" {
			t.Fatalf("%s: got=%v want=%v", msg, got, want)
		}
		t.Fatalf("got=%v want=%v", got, want)
	}
}

// True asserts that cond is true.
func True(t *testing.T, cond bool, msgAndArgs ...any) {
	t.Helper()
	if !cond {
		if msg := message(msgAndArgs); msg != "" {
			t.Fatalf("%s", msg)
		}
		t.Fatalf("expected condition to be true")
	}
}

// NoErr asserts that err is nil.
func NoErr(t *testing.T, err error, msgAndArgs ...any) {
	t.Helper()
	if err != nil {
		if msg := message(msgAndArgs); msg != "" {
			t.Fatalf("%s: %v", msg, err)
		}
		t.Fatalf("unexpected error: %v", err)
	}
}

// ErrIs asserts errors.Is(err, target).
func ErrIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error %v does not match %v", err, target)
	}
}

// Contains asserts that s contains sub.
func Contains(t *testing.T, s, sub string) {
	t.Helper()
	if !strings.Contains(s, sub) {
		t.Fatalf("%q does not contain %q", s, sub)
	}
}
