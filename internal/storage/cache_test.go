package storage

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"smartdiff/internal/ast"
	"smartdiff/internal/logging"
)

func newTestCache(t *testing.T) *FunctionCache {
	t.Helper()
	logger := logging.NewLogger(logging.Config{
		Format: "json",
		Level:  logging.ErrorLevel,
		Output: io.Discard,
	})
	cache, err := OpenFunctionCache(filepath.Join(t.TempDir(), "cache.db"), logger)
	if err != nil {
		t.Fatalf("OpenFunctionCache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func sampleFunctions() []*ast.Function {
	fn := &ast.Function{
		Signature: ast.Signature{
			Name: "apply_coupon",
			Parameters: []ast.Parameter{
				{Name: "order", Type: ast.TypeRef{Name: "Order"}},
			},
		},
		Body: &ast.Node{
			Kind: ast.KindBlock,
			Children: []*ast.Node{
				{Kind: ast.KindCall, Text: "validate"},
			},
		},
		Location:     ast.Location{FilePath: "cart.py", StartLine: 4, EndLine: 12},
		Dependencies: []string{"validate"},
	}
	fn.ComputeHash()
	return []*ast.Function{fn}
}

func TestCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	fns := sampleFunctions()

	if err := cache.Put("cart.py", "hash-1", "python", fns); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := cache.Get("cart.py", "hash-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if len(got) != 1 || got[0].Name() != "apply_coupon" {
		t.Errorf("got %v, want apply_coupon", got)
	}
	if got[0].Hash != fns[0].Hash {
		t.Errorf("hash %q does not survive the round trip, want %q", got[0].Hash, fns[0].Hash)
	}
	if got[0].Body == nil || got[0].Body.Count() != fns[0].Body.Count() {
		t.Error("body tree does not survive the round trip")
	}
}

func TestCacheMissOnStaleHash(t *testing.T) {
	cache := newTestCache(t)
	if err := cache.Put("cart.py", "hash-1", "python", sampleFunctions()); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, ok, err := cache.Get("cart.py", "hash-2"); err != nil || ok {
		t.Errorf("Get with stale hash = (%v, %v), want miss", ok, err)
	}
}

func TestCachePutReplacesOldHashes(t *testing.T) {
	cache := newTestCache(t)
	if err := cache.Put("cart.py", "hash-1", "python", sampleFunctions()); err != nil {
		t.Fatal(err)
	}
	if err := cache.Put("cart.py", "hash-2", "python", sampleFunctions()); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := cache.Get("cart.py", "hash-1"); ok {
		t.Error("old hash should have been evicted")
	}
	if _, ok, _ := cache.Get("cart.py", "hash-2"); !ok {
		t.Error("new hash should hit")
	}

	files, entries, err := cache.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if files != 1 || entries != 1 {
		t.Errorf("Stats = (%d files, %d entries), want (1, 1)", files, entries)
	}
}

func TestCacheInvalidate(t *testing.T) {
	cache := newTestCache(t)
	if err := cache.Put("cart.py", "hash-1", "python", sampleFunctions()); err != nil {
		t.Fatal(err)
	}
	if err := cache.Invalidate("cart.py"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok, _ := cache.Get("cart.py", "hash-1"); ok {
		t.Error("invalidated entry should miss")
	}
}

func TestCachePruneOlderThan(t *testing.T) {
	cache := newTestCache(t)
	if err := cache.Put("cart.py", "hash-1", "python", sampleFunctions()); err != nil {
		t.Fatal(err)
	}

	dropped, err := cache.PruneOlderThan(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if dropped != 0 {
		t.Errorf("dropped %d fresh entries, want 0", dropped)
	}

	dropped, err = cache.PruneOlderThan(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestCacheConcurrentReads(t *testing.T) {
	cache := newTestCache(t)
	if err := cache.Put("cart.py", "hash-1", "python", sampleFunctions()); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, ok, err := cache.Get("cart.py", "hash-1")
			if err == nil && !ok {
				err = io.ErrUnexpectedEOF
			}
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent read: %v", err)
		}
	}
}
