// Package reconciler reassembles cross-shard smart-contract result chains.
// A logical transaction whose execution spans multiple shards is only
// surfaced to the consumer once every SCR it emitted has been observed as
// finalized on its destination shard — tracked via a counter discipline
// keyed by the transaction's original hash.
package reconciler

import (
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"shardfollower/pkg/clock"

	"shardfollower/internal/shardtx"
)

// Topic is the single structured-logging topic every reconciler decision is
// logged under, so an operator can audit counter evolution end to end.
const Topic = "CrossShardSmartContractResult"

// DefaultGracePeriod is how long an entry may live before it is pruned
// without ever being delivered.
const DefaultGracePeriod = 10 * time.Minute

// deliveredCacheSize bounds the "already delivered via reconciliation"
// de-dup set. It is sized generously relative to any plausible in-flight
// working set; entries age out in LRU order rather than growing without
// bound across a long-running follower.
const deliveredCacheSize = 10000

// entry is the reconciler's per-logical-transaction bookkeeping record.
type entry struct {
	transaction *shardtx.Transaction
	counter     int64
	created     time.Time
}

// Reconciler holds the live cross-shard transaction table.
type Reconciler struct {
	clock     clock.Clock
	log       logrus.FieldLogger
	entries   map[string]*entry
	delivered *lru.Cache[string, struct{}]
}

// New creates an empty Reconciler.
func New(c clock.Clock, log logrus.FieldLogger) *Reconciler {
	cache, _ := lru.New[string, struct{}](deliveredCacheSize)
	return &Reconciler{
		clock:     c,
		log:       log.WithField("component", Topic),
		entries:   make(map[string]*entry),
		delivered: cache,
	}
}

// Len reports the number of live (unpruned, uncompleted) entries.
func (r *Reconciler) Len() int { return len(r.entries) }

// InFlight reports whether hash is currently a live key in the reconciler
// table — i.e. a logical transaction whose SCR chain has not yet finished.
// The shard cursor loop uses this to suppress direct delivery of a
// transaction whose cross-shard completion is still pending.
func (r *Reconciler) InFlight(hash string) bool {
	_, ok := r.entries[hash]
	return ok
}

// ProcessBlock runs the three reconciliation passes for one shard's latest
// block and returns the seed transactions of any logical transaction whose
// counter just reached zero, in deterministic (creation-time) order. These
// are prepended to the block's directly-finalized transactions before
// delivery.
func (r *Reconciler) ProcessBlock(shardID uint32, txs []*shardtx.Transaction) []*shardtx.Transaction {
	byHash := make(map[string]*shardtx.Transaction, len(txs))
	for _, tx := range txs {
		byHash[tx.Hash] = tx
	}

	r.passOutbound(shardID, txs, byHash)
	r.passInbound(shardID, txs)
	return r.passCompletion(byHash)
}

// passOutbound handles SCRs emitted from shardID (pass 1).
func (r *Reconciler) passOutbound(shardID uint32, txs []*shardtx.Transaction, byHash map[string]*shardtx.Transaction) {
	for _, tx := range txs {
		if !tx.HasOriginalTransactionHash() {
			continue
		}
		if tx.SourceShard != shardID || tx.DestinationShard == shardID {
			continue
		}

		e, ok := r.entries[tx.OriginalTransactionHash]
		if !ok {
			if r.delivered.Contains(tx.OriginalTransactionHash) {
				r.log.WithField("hash", tx.OriginalTransactionHash).
					Debug("outbound SCR for already-delivered logical transaction, skipping")
				continue
			}
			seed, found := byHash[tx.OriginalTransactionHash]
			if !found {
				r.log.WithField("hash", tx.OriginalTransactionHash).
					Warn("outbound SCR references a seed transaction absent from this batch, skipping")
				continue
			}
			e = &entry{transaction: seed, created: r.clock.Now()}
			r.entries[tx.OriginalTransactionHash] = e
			r.log.WithField("hash", tx.OriginalTransactionHash).Debug("created cross-shard entry")
		}

		if tx.IsOkAcknowledgement() {
			r.log.WithField("hash", tx.OriginalTransactionHash).Debug("outbound @ok acknowledgement, counter unchanged")
			continue
		}
		e.counter++
		r.log.WithField("hash", tx.OriginalTransactionHash).WithField("counter", e.counter).Debug("outbound SCR, counter incremented")
	}
}

// passInbound handles SCRs landing on shardID (pass 2).
func (r *Reconciler) passInbound(shardID uint32, txs []*shardtx.Transaction) {
	for _, tx := range txs {
		if !tx.HasOriginalTransactionHash() {
			continue
		}
		if tx.SourceShard == shardID || tx.DestinationShard != shardID {
			continue
		}

		e, ok := r.entries[tx.OriginalTransactionHash]
		if !ok {
			r.log.WithField("hash", tx.OriginalTransactionHash).
				Debug("inbound SCR with no matching entry, skipping")
			continue
		}

		if tx.IsOkAcknowledgement() {
			r.log.WithField("hash", tx.OriginalTransactionHash).Debug("inbound @ok acknowledgement, counter unchanged")
			continue
		}
		e.counter--
		r.log.WithField("hash", tx.OriginalTransactionHash).WithField("counter", e.counter).Debug("inbound SCR, counter decremented")
	}
}

// passCompletion sweeps entries whose counter has returned to zero (pass 3).
func (r *Reconciler) passCompletion(byHash map[string]*shardtx.Transaction) []*shardtx.Transaction {
	type ready struct {
		hash string
		e    *entry
	}
	var candidates []ready
	for hash, e := range r.entries {
		if e.counter == 0 {
			candidates = append(candidates, ready{hash, e})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].e.created.Equal(candidates[j].e.created) {
			return candidates[i].hash < candidates[j].hash
		}
		return candidates[i].e.created.Before(candidates[j].e.created)
	})

	var out []*shardtx.Transaction
	for _, c := range candidates {
		if _, directlyPresent := byHash[c.hash]; !directlyPresent {
			out = append(out, c.e.transaction)
			r.delivered.Add(c.hash, struct{}{})
			r.log.WithField("hash", c.hash).Info("cross-shard transaction finalized")
		} else {
			r.log.WithField("hash", c.hash).Debug("cross-shard transaction already present directly in this block, not re-delivered")
		}
		delete(r.entries, c.hash)
	}
	return out
}

// Prune removes every entry older than gracePeriod and returns how many
// were removed. A pruned entry is never delivered.
func (r *Reconciler) Prune(gracePeriod time.Duration) int {
	if gracePeriod <= 0 {
		gracePeriod = DefaultGracePeriod
	}
	now := r.clock.Now()
	var removed int
	for hash, e := range r.entries {
		if now.Sub(e.created) > gracePeriod {
			delete(r.entries, hash)
			removed++
			r.log.WithField("hash", hash).Warn("cross-shard entry pruned without delivery")
		}
	}
	return removed
}
