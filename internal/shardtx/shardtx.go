// Package shardtx defines the transaction record exchanged between the
// gateway client, the cross-shard reconciler, and the consumer callback.
package shardtx

import (
	"encoding/base64"
	"strings"
	"sync"
)

// Shard identifiers are unsigned 32-bit integers. MetachainShardID is the
// all-ones sentinel identifying the metachain.
const MetachainShardID uint32 = 4294967295

// OkAcknowledgement is the base64-decoded ASCII marker "@ok" carried by a
// success-acknowledgement SCR. Such SCRs never affect reconciler counters.
const OkAcknowledgement = "@6f6b"

// Transaction is one transaction record as returned by the gateway, plus
// lazily-computed derived fields. A struct literal is ready to use; the
// derived fields are computed on first access.
type Transaction struct {
	Hash                    string
	Sender                  string
	Receiver                string
	Value                   string
	Nonce                   uint64
	SourceShard             uint32
	DestinationShard        uint32
	Status                  string
	Data                    string // base64-encoded, as received from the gateway
	OriginalTransactionHash string
	GasPrice                uint64
	GasLimit                uint64
	PreviousTransactionHash string

	derive sync.Once
	text   string
	fn     string
	args   []string
}

// HasOriginalTransactionHash reports whether this record is itself an SCR
// referencing a logical parent transaction.
func (t *Transaction) HasOriginalTransactionHash() bool {
	return t.OriginalTransactionHash != ""
}

// decode lazily base64-decodes Data and splits it into a function name and
// argument list, guarded by a sync.Once so repeated accessors never redo the
// work and no global mutable parse state is involved.
func (t *Transaction) decode() {
	t.derive.Do(func() {
		if t.Data == "" {
			return
		}
		raw, err := base64.StdEncoding.DecodeString(t.Data)
		if err != nil {
			return
		}
		t.text = string(raw)
		parts := strings.Split(t.text, "@")
		t.fn = parts[0]
		if len(parts) > 1 {
			t.args = parts[1:]
		}
	})
}

// DecodedData returns the base64-decoded transaction data as text. Returns
// the empty string if Data is absent or not valid base64.
func (t *Transaction) DecodedData() string {
	t.decode()
	return t.text
}

// FunctionName returns the substring of the decoded data before the first
// '@', i.e. the smart-contract function being invoked. Empty if there is no
// data.
func (t *Transaction) FunctionName() string {
	t.decode()
	return t.fn
}

// Arguments returns the '@'-separated segments following the function name.
func (t *Transaction) Arguments() []string {
	t.decode()
	return t.args
}

// IsOkAcknowledgement reports whether this transaction's base64-decoded data
// is exactly the success marker "@6f6b" ("@ok"). Such SCRs are counter-
// neutral bookkeeping and must not alter reconciler state.
func (t *Transaction) IsOkAcknowledgement() bool {
	return t.DecodedData() == OkAcknowledgement
}
