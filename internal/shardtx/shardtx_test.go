package shardtx

import (
	"encoding/base64"
	"reflect"
	"testing"
)

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func TestFunctionNameAndArguments(t *testing.T) {
	tx := &Transaction{Data: b64("foo@01@02")}
	if got := tx.FunctionName(); got != "foo" {
		t.Fatalf("FunctionName() = %q, want %q", got, "foo")
	}
	if got := tx.Arguments(); !reflect.DeepEqual(got, []string{"01", "02"}) {
		t.Fatalf("Arguments() = %v", got)
	}
	if got := tx.DecodedData(); got != "foo@01@02" {
		t.Fatalf("DecodedData() = %q", got)
	}
}

func TestNoData(t *testing.T) {
	tx := &Transaction{}
	if got := tx.FunctionName(); got != "" {
		t.Fatalf("FunctionName() = %q, want empty", got)
	}
	if got := tx.Arguments(); got != nil {
		t.Fatalf("Arguments() = %v, want nil", got)
	}
}

func TestInvalidBase64(t *testing.T) {
	tx := &Transaction{Data: "not-valid-base64!!"}
	if got := tx.DecodedData(); got != "" {
		t.Fatalf("DecodedData() = %q, want empty on decode failure", got)
	}
}

func TestIsOkAcknowledgement(t *testing.T) {
	ok := &Transaction{Data: b64(OkAcknowledgement)}
	if !ok.IsOkAcknowledgement() {
		t.Fatalf("expected @ok marker to be recognized")
	}
	notOk := &Transaction{Data: b64("foo@01")}
	if notOk.IsOkAcknowledgement() {
		t.Fatalf("did not expect @ok marker")
	}
}

func TestDecodeIsMemoized(t *testing.T) {
	tx := &Transaction{Data: b64("bar@ff")}
	first := tx.FunctionName()
	tx.Data = b64("mutated@00") // simulate a later mutation; decode must not rerun
	second := tx.FunctionName()
	if first != second {
		t.Fatalf("decode ran twice: first=%q second=%q", first, second)
	}
}

func TestHasOriginalTransactionHash(t *testing.T) {
	tx := &Transaction{}
	if tx.HasOriginalTransactionHash() {
		t.Fatalf("expected false for empty hash")
	}
	tx.OriginalTransactionHash = "abc"
	if !tx.HasOriginalTransactionHash() {
		t.Fatalf("expected true once set")
	}
}
