// Package testutil holds the assertion helpers shared by package tests.
// Every helper stops the test on failure.
package testutil

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"
)

// EventuallyTimeout bounds RequireEventually.
const EventuallyTimeout = 2 * time.Second

// fail stops the test, prefixing detail with message when one is given.
func fail(testingHandle testing.TB, message string, detail string, args ...any) {
	testingHandle.Helper()
	text := fmt.Sprintf(detail, args...)
	if message != "" {
		text = message + ": " + text
	}
	testingHandle.Fatal(text)
}

// RequireNoError fails if err is non-nil.
func RequireNoError(testingHandle testing.TB, err error, message string) {
	testingHandle.Helper()
	if err != nil {
		fail(testingHandle, message, "unexpected error: %v", err)
	}
}

// RequireError fails if err is nil.
func RequireError(testingHandle testing.TB, err error, message string) {
	testingHandle.Helper()
	if err == nil {
		fail(testingHandle, message, "expected an error")
	}
}

// RequireEqual fails when the values are not deeply equal.
func RequireEqual(testingHandle testing.TB, gotValue any, wantValue any, message string) {
	testingHandle.Helper()
	if !reflect.DeepEqual(gotValue, wantValue) {
		fail(testingHandle, message, "values differ\nwant: %#v\ngot:  %#v", wantValue, gotValue)
	}
}

// RequireTrue fails if condition is false.
func RequireTrue(testingHandle testing.TB, condition bool, message string) {
	testingHandle.Helper()
	if !condition {
		fail(testingHandle, message, "expected condition to hold")
	}
}

// RequireLen fails when a slice, map, string or channel has the wrong length.
func RequireLen(testingHandle testing.TB, value any, wantLen int, message string) {
	testingHandle.Helper()
	reflected := reflect.ValueOf(value)
	switch reflected.Kind() {
	case reflect.Slice, reflect.Array, reflect.String, reflect.Map, reflect.Chan:
	default:
		fail(testingHandle, message, "value of kind %s has no length", reflected.Kind())
		return
	}
	if reflected.Len() != wantLen {
		fail(testingHandle, message, "want length %d, got %d (%#v)", wantLen, reflected.Len(), value)
	}
}

// RequireStringContains fails if needle is missing from haystack.
func RequireStringContains(testingHandle testing.TB, haystack string, needle string, message string) {
	testingHandle.Helper()
	if !strings.Contains(haystack, needle) {
		fail(testingHandle, message, "%q does not contain %q", haystack, needle)
	}
}

// RequireEventually polls condition until it holds or EventuallyTimeout passes.
func RequireEventually(testingHandle testing.TB, condition func() bool, message string) {
	testingHandle.Helper()
	deadline := time.Now().Add(EventuallyTimeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	fail(testingHandle, message, "condition not met within %s", EventuallyTimeout)
}
