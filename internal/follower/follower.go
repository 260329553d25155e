// Package follower owns the collection of shard cursor loops: it ensures
// only one run is active at a time, performs a periodic prune of stale
// reconciler entries, and drives the "reach the tip" sweep across all
// shards.
package follower

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"shardfollower/pkg/clock"

	"shardfollower/internal/cursorloop"
	"shardfollower/internal/cursorstore"
	"shardfollower/internal/gatewayclient"
	"shardfollower/internal/reconciler"
	"shardfollower/internal/shardtx"
	"shardfollower/internal/tipestimator"
)

// ErrAlreadyRunning is returned by Run when a run is already in progress on
// this Follower instance.
var ErrAlreadyRunning = errors.New("follower: run already in progress")

// Recorder is an optional sink for orchestrator-level observability.
// internal/metrics implements this against Prometheus; tests may pass nil.
type Recorder interface {
	ObserveSweepDuration(d time.Duration)
	SetReconcilerEntries(n int)
	IncPruned(n int)
	SetCursor(shardID uint32, nonce uint64)
}

// Options configures a single Run call. The gateway URL and logger are
// fixed at New and are not repeated here.
type Options struct {
	RoundDuration time.Duration
	MaxLookBehind uint64

	WaitForFinalizedCrossShardSmartContractResults bool
	NotifyEmptyBlocks                             bool
	IncludeCrossShardStartedTransactions          bool

	OnTransactionsReceived cursorloop.ConsumerFunc
	CursorStore            cursorstore.Store

	Clock    clock.Clock
	Recorder Recorder

	// GracePeriod overrides reconciler.DefaultGracePeriod; zero keeps the
	// default.
	GracePeriod time.Duration
}

// Follower owns the reconciler table, the per-shard cursor loops, and the
// single-run guard for one instance. Reconciler map, cursor map, and
// per-shard baseline nonces are all owned by this instance and mutated
// only from its sweep — if multiple orchestrator instances are desired,
// each owns its own copy, and no locking is required under the serial
// sweep model.
type Follower struct {
	gateway    *gatewayclient.Client
	reconciler *reconciler.Reconciler
	clock      clock.Clock
	log        *logrus.Logger
	recorder   Recorder
	cursors    cursorstore.Store // used when Options.CursorStore is nil

	running int32 // atomic bool guarding single-run-at-a-time
}

// New creates a Follower against the given gateway base URL.
func New(gatewayURL string, log *logrus.Logger, c clock.Clock) *Follower {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if c == nil {
		c = clock.Real()
	}
	return &Follower{
		gateway:    gatewayclient.New(gatewayURL, gatewayclient.WithLogger(log)),
		reconciler: reconciler.New(c, log),
		clock:      c,
		log:        log,
		cursors:    cursorstore.NewInMemory(),
	}
}

// Run performs one orchestrator sweep: pre-check, prune, then repeated full
// iterations over every discovered shard until each reports the tip has
// been reached in a single pass. Run refuses to start if a run is already
// in progress.
func (f *Follower) Run(ctx context.Context, opts Options) error {
	if !atomic.CompareAndSwapInt32(&f.running, 0, 1) {
		return ErrAlreadyRunning
	}
	defer atomic.StoreInt32(&f.running, 0)

	if opts.Clock != nil {
		f.clock = opts.Clock
	}
	if opts.Recorder != nil {
		f.recorder = opts.Recorder
	}
	gracePeriod := opts.GracePeriod
	if gracePeriod <= 0 {
		gracePeriod = reconciler.DefaultGracePeriod
	}

	pruned := f.reconciler.Prune(gracePeriod)
	if f.recorder != nil {
		f.recorder.IncPruned(pruned)
		f.recorder.SetReconcilerEntries(f.reconciler.Len())
	}

	store := opts.CursorStore
	if store == nil {
		store = f.cursors
	}

	shardIDs, ok := f.gateway.GetShardIds(ctx)
	if !ok {
		return errors.New("follower: could not discover shard ids from gateway")
	}

	estimator := tipestimator.New(f.clock, opts.RoundDuration)
	loops := make(map[uint32]*cursorloop.Loop, len(shardIDs))
	now := f.clock.Now()
	for _, shardID := range shardIDs {
		tip, ok := f.gateway.GetTipNonce(ctx, shardID)
		if !ok {
			return errors.New("follower: could not fetch starting tip nonce")
		}
		estimator.Seed(shardID, tip)

		loop := &cursorloop.Loop{
			ShardID:    shardID,
			Gateway:    f.gateway,
			Store:      store,
			Estimator:  estimator,
			Reconciler: f.reconciler,
			Clock:      f.clock,
			Log:        f.log,
			Consumer:   f.wrapConsumer(opts.OnTransactionsReceived),
			Config: cursorloop.Config{
				MaxLookBehind:                        opts.MaxLookBehind,
				WaitForFinalizedCrossShardResults:    opts.WaitForFinalizedCrossShardSmartContractResults,
				NotifyEmptyBlocks:                    opts.NotifyEmptyBlocks,
				IncludeCrossShardStartedTransactions: opts.IncludeCrossShardStartedTransactions,
			},
		}
		loop.Start(now)
		loops[shardID] = loop
	}

	sweepStart := f.clock.Now()
	for {
		reachedTip := true
		for _, shardID := range shardIDs {
			loop := loops[shardID]
			outcome, err := loop.Advance(ctx)
			if err != nil {
				return err
			}
			if outcome == cursorloop.ProgressMade {
				reachedTip = false
			}
		}
		if f.recorder != nil {
			f.recorder.SetReconcilerEntries(f.reconciler.Len())
		}
		if reachedTip {
			break
		}
	}
	if f.recorder != nil {
		f.recorder.ObserveSweepDuration(f.clock.Now().Sub(sweepStart))
	}
	return nil
}

// wrapConsumer adapts the user-supplied callback, recording per-shard
// cursor metrics after a successful delivery.
func (f *Follower) wrapConsumer(fn cursorloop.ConsumerFunc) cursorloop.ConsumerFunc {
	return func(ctx context.Context, shardID uint32, nonce uint64, txs []*shardtx.Transaction, stats cursorloop.Statistics, blockHash string) error {
		if fn == nil {
			return nil
		}
		if err := fn(ctx, shardID, nonce, txs, stats, blockHash); err != nil {
			return err
		}
		if f.recorder != nil {
			f.recorder.SetCursor(shardID, nonce)
		}
		return nil
	}
}
