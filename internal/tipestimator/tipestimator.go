// Package tipestimator projects a shard's current tip nonce from a baseline
// captured once at the start of a run, avoiding a network round-trip per
// shard per loop iteration.
package tipestimator

import (
	"time"

	"shardfollower/pkg/clock"
)

// DefaultRoundDuration is the protocol's fixed round duration in seconds.
const DefaultRoundDuration = 6 * time.Second

// Estimator projects the current tip nonce for a set of shards, each seeded
// once via Seed with a baseline nonce and the clock time it was observed.
// It is never re-synced mid-run; drift is bounded by run length and
// corrected by the Estimator built for the next run.
type Estimator struct {
	clock         clock.Clock
	roundDuration time.Duration
	startNonce    map[uint32]uint64
	startTime     map[uint32]time.Time
}

// New creates an Estimator. roundDuration of zero falls back to
// DefaultRoundDuration.
func New(c clock.Clock, roundDuration time.Duration) *Estimator {
	if roundDuration <= 0 {
		roundDuration = DefaultRoundDuration
	}
	return &Estimator{
		clock:         c,
		roundDuration: roundDuration,
		startNonce:    make(map[uint32]uint64),
		startTime:     make(map[uint32]time.Time),
	}
}

// Seed records the baseline tip nonce for shardID, captured at the current
// clock time. Call once per shard at the beginning of a run.
func (e *Estimator) Seed(shardID uint32, tipNonce uint64) {
	e.startNonce[shardID] = tipNonce
	e.startTime[shardID] = e.clock.Now()
}

// Estimate returns the projected tip nonce for shardID: startNonce +
// floor(elapsed / roundDuration). Seed must have been called for shardID
// first; otherwise Estimate returns 0.
func (e *Estimator) Estimate(shardID uint32) uint64 {
	start, ok := e.startTime[shardID]
	if !ok {
		return 0
	}
	elapsed := e.clock.Now().Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}
	rounds := uint64(elapsed / e.roundDuration)
	return e.startNonce[shardID] + rounds
}

// Seeded reports whether Seed has been called for shardID.
func (e *Estimator) Seeded(shardID uint32) bool {
	_, ok := e.startTime[shardID]
	return ok
}
