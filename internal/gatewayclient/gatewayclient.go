// Package gatewayclient fetches block-by-nonce, network config, and shard
// status from a gateway HTTP API and normalizes responses into domain
// records. Every response is wrapped under a top-level "data" envelope, per
// the gateway's convention.
//
// Any transport or decoding failure surfaces as an "absent" result (ok ==
// false) rather than an error value the caller must special-case: the gateway is eventually consistent near the tip, and a transient
// 4xx/5xx at tip+k is the normal case, not a fault to propagate.
package gatewayclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"shardfollower/internal/shardtx"
)

// DefaultBaseURL is the gateway used when no override is configured.
const DefaultBaseURL = "https://gateway.elrond.com"

// Client fetches blocks, network config, and shard status from a gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        logrus.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default *http.Client (e.g. to set a custom
// timeout or transport).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithLogger overrides the default logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(cl *Client) { cl.log = l }
}

// New creates a Client against baseURL. An empty baseURL falls back to
// DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type networkConfigResponse struct {
	Data struct {
		Config struct {
			NumShardsWithoutMeta uint32 `json:"erd_num_shards_without_meta"`
		} `json:"config"`
	} `json:"data"`
}

// GetShardIds returns the ordered shard ids [0, 1, ..., N-1,
// shardtx.MetachainShardID], derived from network/config.
func (c *Client) GetShardIds(ctx context.Context) ([]uint32, bool) {
	var resp networkConfigResponse
	if !c.getJSON(ctx, "/network/config", &resp) {
		return nil, false
	}
	n := resp.Data.Config.NumShardsWithoutMeta
	ids := make([]uint32, 0, n+1)
	for i := uint32(0); i < n; i++ {
		ids = append(ids, i)
	}
	ids = append(ids, shardtx.MetachainShardID)
	return ids, true
}

type networkStatusResponse struct {
	Data struct {
		Status struct {
			Nonce uint64 `json:"erd_nonce"`
		} `json:"status"`
	} `json:"data"`
}

// GetTipNonce returns the highest committed nonce for shardID.
func (c *Client) GetTipNonce(ctx context.Context, shardID uint32) (uint64, bool) {
	var resp networkStatusResponse
	path := fmt.Sprintf("/network/status/%d", shardID)
	if !c.getJSON(ctx, path, &resp) {
		return 0, false
	}
	return resp.Data.Status.Nonce, true
}

type gatewayTransaction struct {
	Hash                    string `json:"hash"`
	Sender                  string `json:"sender"`
	Receiver                string `json:"receiver"`
	Value                   string `json:"value"`
	Nonce                   uint64 `json:"nonce"`
	SourceShard             uint32 `json:"sourceShard"`
	DestinationShard        uint32 `json:"destinationShard"`
	Status                  string `json:"status"`
	Data                    string `json:"data"`
	OriginalTransactionHash string `json:"originalTransactionHash"`
	GasPrice                uint64 `json:"gasPrice"`
	GasLimit                uint64 `json:"gasLimit"`
	PreviousTransactionHash string `json:"previousTransactionHash"`
}

type blockByNonceResponse struct {
	Data struct {
		Block *struct {
			Hash       string `json:"hash"`
			MiniBlocks []struct {
				Transactions []gatewayTransaction `json:"transactions"`
			} `json:"miniBlocks"`
		} `json:"block"`
	} `json:"data"`
}

// Block is the normalized result of a by-nonce fetch: the block hash and
// the flattened transaction list, in gateway-given order, across every
// mini-block.
type Block struct {
	Hash         string
	Transactions []*shardtx.Transaction
}

// GetBlockByNonce fetches block/{shardID}/by-nonce/{nonce}?withTxs=true. If
// the response lacks a block object, ok is false. A block with no mini-
// blocks yields an empty transaction list with ok true.
func (c *Client) GetBlockByNonce(ctx context.Context, shardID uint32, nonce uint64) (Block, bool) {
	var resp blockByNonceResponse
	path := fmt.Sprintf("/block/%d/by-nonce/%d?withTxs=true", shardID, nonce)
	if !c.getJSON(ctx, path, &resp) {
		return Block{}, false
	}
	if resp.Data.Block == nil {
		return Block{}, false
	}
	block := Block{Hash: resp.Data.Block.Hash}
	for _, mb := range resp.Data.Block.MiniBlocks {
		for _, tx := range mb.Transactions {
			block.Transactions = append(block.Transactions, &shardtx.Transaction{
				Hash:                    tx.Hash,
				Sender:                  tx.Sender,
				Receiver:                tx.Receiver,
				Value:                   tx.Value,
				Nonce:                   tx.Nonce,
				SourceShard:             tx.SourceShard,
				DestinationShard:        tx.DestinationShard,
				Status:                  tx.Status,
				Data:                    tx.Data,
				OriginalTransactionHash: tx.OriginalTransactionHash,
				GasPrice:                tx.GasPrice,
				GasLimit:                tx.GasLimit,
				PreviousTransactionHash: tx.PreviousTransactionHash,
			})
		}
	}
	return block, true
}

// getJSON issues a GET against path and decodes the response body into out.
// Any failure (transport, non-2xx status, decode error) is logged at Debug
// and reported as ok == false; it never returns an error for the caller to
// branch on, matching the gateway's eventually-consistent behavior near the
// tip.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		c.log.WithError(err).WithField("path", path).Debug("gateway: build request failed")
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithError(err).WithField("path", path).Debug("gateway: request failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.WithField("path", path).WithField("status", resp.StatusCode).Debug("gateway: non-2xx response")
		return false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.WithError(err).WithField("path", path).Debug("gateway: read body failed")
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.log.WithError(err).WithField("path", path).Debug("gateway: decode failed")
		return false
	}
	return true
}
