package gatewayclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetShardIds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"config":{"erd_num_shards_without_meta":3}}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	ids, ok := c.GetShardIds(context.Background())
	if !ok {
		t.Fatalf("expected ok")
	}
	want := []uint32{0, 1, 2, 4294967295}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestGetTipNonce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"status":{"erd_nonce":103}}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	nonce, ok := c.GetTipNonce(context.Background(), 0)
	if !ok || nonce != 103 {
		t.Fatalf("got (%d,%v), want (103,true)", nonce, ok)
	}
}

func TestGetBlockByNonceAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, ok := c.GetBlockByNonce(context.Background(), 0, 104)
	if ok {
		t.Fatalf("expected absent block")
	}
}

func TestGetBlockByNonceEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"block":{"hash":"0xabc","miniBlocks":[]}}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	block, ok := c.GetBlockByNonce(context.Background(), 0, 77)
	if !ok {
		t.Fatalf("expected ok")
	}
	if block.Hash != "0xabc" || len(block.Transactions) != 0 {
		t.Fatalf("got %+v", block)
	}
}

func TestGetBlockByNonceFlattensMiniBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"block":{"hash":"0xdef","miniBlocks":[
			{"transactions":[{"hash":"t1","nonce":1}]},
			{"transactions":[{"hash":"t2","nonce":2},{"hash":"t3","nonce":3}]}
		]}}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	block, ok := c.GetBlockByNonce(context.Background(), 0, 50)
	if !ok {
		t.Fatalf("expected ok")
	}
	if len(block.Transactions) != 3 {
		t.Fatalf("got %d transactions, want 3", len(block.Transactions))
	}
	if block.Transactions[0].Hash != "t1" || block.Transactions[1].Hash != "t2" || block.Transactions[2].Hash != "t3" {
		t.Fatalf("order not preserved: %+v", block.Transactions)
	}
}

func TestGetBlockByNonceTransportFailure(t *testing.T) {
	c := New("http://127.0.0.1:1") // nothing listening
	_, ok := c.GetBlockByNonce(context.Background(), 0, 1)
	if ok {
		t.Fatalf("expected absent on transport failure")
	}
}

func TestGetBlockByNonceMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, ok := c.GetBlockByNonce(context.Background(), 0, 1)
	if ok {
		t.Fatalf("expected absent on malformed JSON")
	}
}
