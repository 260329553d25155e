// Package cursorloop implements the per-shard nonce cursor progression: it
// compares the estimated tip to the last-processed nonce, fetches the next
// block, assembles the delivered transaction batch (direct transactions
// plus newly-finalized cross-shard ones), invokes the consumer, and
// advances the cursor.
package cursorloop

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"shardfollower/pkg/clock"

	"shardfollower/internal/cursorstore"
	"shardfollower/internal/gatewayclient"
	"shardfollower/internal/reconciler"
	"shardfollower/internal/shardtx"
)

// Outcome reports what a single Advance call accomplished, so the
// orchestrator can decide whether another sweep is warranted.
type Outcome int

const (
	// ProgressMade means a block was delivered and the cursor advanced;
	// another sweep should be attempted immediately, as more blocks may
	// already be available.
	ProgressMade Outcome = iota
	// ReachedTip means the estimated tip equals the last-processed nonce;
	// nothing left to fetch this sweep.
	ReachedTip
	// BlockNotAvailable means the estimated tip is ahead of the cursor but
	// the gateway does not yet have the next block. Treated the same as
	// ReachedTip for sweep-termination purposes (otherwise a gateway that
	// is merely slow to produce the next block would spin the orchestrator
	// forever, since no sleep is introduced between sweeps) but reported
	// distinctly for logging and statistics.
	BlockNotAvailable
)

// Statistics is the progress snapshot passed to the consumer alongside a
// delivered block.
type Statistics struct {
	SecondsElapsed  float64
	ProcessedNonces uint64
	NoncesPerSecond float64
	NoncesLeft      uint64
	SecondsLeft     float64
}

// ConsumerFunc is invoked with every non-empty (or, if configured, every)
// delivered batch. It is awaited before the cursor is saved, which is what
// gives the follower its at-least-once delivery guarantee: an error here
// leaves the cursor untouched, so the same block is re-delivered on the
// next sweep.
type ConsumerFunc func(ctx context.Context, shardID uint32, nonce uint64, txs []*shardtx.Transaction, stats Statistics, blockHash string) error

// TipEstimator is the subset of tipestimator.Estimator the loop depends on.
type TipEstimator interface {
	Estimate(shardID uint32) uint64
}

// Config bundles the per-run options that shape cursor-loop behavior.
type Config struct {
	MaxLookBehind                        uint64
	WaitForFinalizedCrossShardResults    bool
	NotifyEmptyBlocks                    bool
	IncludeCrossShardStartedTransactions bool
}

// Loop drives one shard's nonce progression for the lifetime of a single
// orchestrator run. A fresh Loop is created per shard per Run call, so
// startLast/runStart reset naturally between runs.
type Loop struct {
	ShardID    uint32
	Gateway    *gatewayclient.Client
	Store      cursorstore.Store
	Estimator  TipEstimator
	Reconciler *reconciler.Reconciler
	Clock      clock.Clock
	Log        logrus.FieldLogger
	Config     Config
	Consumer   ConsumerFunc

	runStart     time.Time
	startLastSet bool
	startLast    uint64
}

// Start records the wall-clock time statistics are measured relative to.
// Call once when the owning orchestrator run begins.
func (l *Loop) Start(now time.Time) {
	l.runStart = now
}

// Advance performs one iteration of the shard cursor loop (spec §4.5,
// steps 1-11) and reports its outcome.
func (l *Loop) Advance(ctx context.Context) (Outcome, error) {
	current := l.Estimator.Estimate(l.ShardID)

	last, ok, err := l.Store.LoadCursor(ctx, l.ShardID, current)
	if err != nil {
		return 0, err
	}
	if !ok {
		last = saturatingPred(current)
		if err := l.Store.SaveCursor(ctx, l.ShardID, last); err != nil {
			return 0, err
		}
	}

	if last == current {
		return ReachedTip, nil
	}
	if last > current {
		l.Log.WithField("shard", l.ShardID).
			WithField("persistedLast", last).
			WithField("liveTip", current).
			Info("network reset detected, realigning cursor downward")
		last = current
	}
	if l.Config.MaxLookBehind > 0 && current-last > l.Config.MaxLookBehind {
		last = current - l.Config.MaxLookBehind
	}

	if !l.startLastSet {
		l.startLast = last
		l.startLastSet = true
	}

	nonce := last + 1
	block, ok := l.Gateway.GetBlockByNonce(ctx, l.ShardID, nonce)
	if !ok {
		return BlockNotAvailable, nil
	}

	delivered := l.assembleDelivery(block.Transactions)

	if len(delivered) > 0 || l.Config.NotifyEmptyBlocks {
		stats := l.statistics(current, last)
		if err := l.Consumer(ctx, l.ShardID, nonce, delivered, stats, block.Hash); err != nil {
			return 0, err
		}
	}

	if err := l.Store.SaveCursor(ctx, l.ShardID, nonce); err != nil {
		return 0, err
	}
	return ProgressMade, nil
}

// assembleDelivery builds the ordered batch handed to the consumer: the
// reconciler's newly-finalized cross-shard transactions, followed by the
// block's own transactions that qualify for direct delivery.
func (l *Loop) assembleDelivery(txs []*shardtx.Transaction) []*shardtx.Transaction {
	var delivered []*shardtx.Transaction

	if l.Config.WaitForFinalizedCrossShardResults {
		delivered = append(delivered, l.Reconciler.ProcessBlock(l.ShardID, txs)...)
	}

	for _, tx := range txs {
		if tx.DestinationShard != l.ShardID && !l.Config.IncludeCrossShardStartedTransactions {
			continue
		}
		if l.Config.WaitForFinalizedCrossShardResults && l.Reconciler.InFlight(tx.Hash) {
			continue
		}
		delivered = append(delivered, tx)
	}
	return delivered
}

func (l *Loop) statistics(current, last uint64) Statistics {
	secondsElapsed := l.Clock.Now().Sub(l.runStart).Seconds()

	var processedNonces uint64
	if last > l.startLast {
		processedNonces = last - l.startLast
	}

	var noncesPerSecond float64
	if secondsElapsed > 0 {
		noncesPerSecond = float64(processedNonces) / secondsElapsed
	}

	noncesLeft := current - last
	secondsLeft := float64(noncesLeft) / noncesPerSecond * 1.1
	if math.IsNaN(secondsLeft) {
		secondsLeft = math.Inf(1)
	}

	return Statistics{
		SecondsElapsed:  secondsElapsed,
		ProcessedNonces: processedNonces,
		NoncesPerSecond: noncesPerSecond,
		NoncesLeft:      noncesLeft,
		SecondsLeft:     secondsLeft,
	}
}

// saturatingPred returns n-1, or 0 if n is already 0 (guards the unsigned
// underflow a brand-new shard at tip nonce 0 would otherwise hit).
func saturatingPred(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	return n - 1
}
