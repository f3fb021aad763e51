package local

import (
	"context"
	"path/filepath"
	"testing"
)

func abrirKVTest(t *testing.T) *KV {
	t.Helper()
	kv, err := AbrirKV(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("AbrirKV: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestKVGetSetDelete(t *testing.T) {
	kv := abrirKVTest(t)
	ctx := context.Background()

	var valor []string
	ok, err := kv.Get(ctx, "claves", &valor)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected miss on fresh store")
	}

	if err := kv.Set(ctx, "claves", []string{"a", "b"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ok, err = kv.Get(ctx, "claves", &valor)
	if err != nil || !ok {
		t.Fatalf("Get after Set: ok=%v err=%v", ok, err)
	}
	if len(valor) != 2 || valor[0] != "a" {
		t.Fatalf("unexpected value: %v", valor)
	}

	if err := kv.Delete(ctx, "claves"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := kv.Get(ctx, "claves", &valor); ok {
		t.Fatalf("expected miss after delete")
	}
	// Deleting again is a no-op.
	if err := kv.Delete(ctx, "claves"); err != nil {
		t.Fatalf("Delete twice: %v", err)
	}
}

func TestKVNextIDMonotonico(t *testing.T) {
	kv := abrirKVTest(t)
	ctx := context.Background()

	anterior := int64(0)
	for i := 0; i < 5; i++ {
		id, err := kv.NextID(ctx, "order_counter")
		if err != nil {
			t.Fatalf("NextID: %v", err)
		}
		if id != anterior+1 {
			t.Fatalf("expected %d, got %d", anterior+1, id)
		}
		anterior = id
	}

	// Counters are independent per key.
	id, err := kv.NextID(ctx, "otro_contador")
	if err != nil {
		t.Fatalf("NextID: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected independent counter to start at 1, got %d", id)
	}
}
