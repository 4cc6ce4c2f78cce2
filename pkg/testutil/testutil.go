// Package testutil contains common test utilities.
package testutil

import (
	"testing"
	"time"
)

// Cleanuper wraps the Cleanup method. It is a subset of [testing.TB], thus
// satisfied by [*testing.T] and [*testing.B].
type Cleanuper interface {
	Cleanup(func())
}

// Recv receives one value from ch, failing the test if nothing arrives within
// the scaled timeout.
func Recv[T any](t testing.TB, ch <-chan T, timeout time.Duration) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(Scaled(timeout)):
		t.Fatalf("timed out after %v waiting for a value", Scaled(timeout))
		var zero T
		return zero
	}
}
