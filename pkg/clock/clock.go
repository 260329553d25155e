// Package clock re-exports the injectable time source used throughout the
// follower so every package depends on one interface rather than wall time
// directly. Production code uses Real(); tests use a *clock.Mock to drive
// the tip estimator and the reconciler's prune step deterministically.
package clock

import "github.com/benbjohnson/clock"

// Clock is the time source interface consumed by the tip estimator and the
// follower orchestrator.
type Clock = clock.Clock

// Mock is a controllable Clock for tests.
type Mock = clock.Mock

// Real returns the wall-clock implementation.
func Real() Clock { return clock.New() }

// NewMock returns a fresh mock clock, initialized like clock.NewMock().
func NewMock() *Mock { return clock.NewMock() }
