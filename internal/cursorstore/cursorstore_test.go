package cursorstore

import (
	"context"
	"errors"
	"testing"
)

func TestInMemoryFirstObservationAbsent(t *testing.T) {
	s := NewInMemory()
	_, ok, err := s.LoadCursor(context.Background(), 0, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected absent on first observation")
	}
}

func TestInMemorySaveThenLoad(t *testing.T) {
	s := NewInMemory()
	if err := s.SaveCursor(context.Background(), 1, 50); err != nil {
		t.Fatalf("save: %v", err)
	}
	n, ok, err := s.LoadCursor(context.Background(), 1, 0)
	if err != nil || !ok || n != 50 {
		t.Fatalf("got (%d,%v,%v), want (50,true,nil)", n, ok, err)
	}
}

func TestInMemoryShardsAreIndependent(t *testing.T) {
	s := NewInMemory()
	_ = s.SaveCursor(context.Background(), 0, 10)
	_ = s.SaveCursor(context.Background(), 1, 20)
	n0, _, _ := s.LoadCursor(context.Background(), 0, 0)
	n1, _, _ := s.LoadCursor(context.Background(), 1, 0)
	if n0 != 10 || n1 != 20 {
		t.Fatalf("got n0=%d n1=%d", n0, n1)
	}
}

func TestFuncAdapter(t *testing.T) {
	saved := map[uint32]uint64{}
	f := Func{
		Load: func(_ context.Context, shardID uint32, _ uint64) (uint64, bool, error) {
			n, ok := saved[shardID]
			return n, ok, nil
		},
		Save: func(_ context.Context, shardID uint32, nonce uint64) error {
			saved[shardID] = nonce
			return nil
		},
	}
	var s Store = f
	if err := s.SaveCursor(context.Background(), 5, 99); err != nil {
		t.Fatalf("save: %v", err)
	}
	n, ok, err := s.LoadCursor(context.Background(), 5, 0)
	if err != nil || !ok || n != 99 {
		t.Fatalf("got (%d,%v,%v)", n, ok, err)
	}
}

func TestFuncAdapterPropagatesError(t *testing.T) {
	wantErr := errors.New("backend down")
	f := Func{
		Load: func(_ context.Context, _ uint32, _ uint64) (uint64, bool, error) {
			return 0, false, wantErr
		},
		Save: func(_ context.Context, _ uint32, _ uint64) error {
			return wantErr
		},
	}
	if _, _, err := f.LoadCursor(context.Background(), 0, 0); !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
	if err := f.SaveCursor(context.Background(), 0, 0); !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
}
