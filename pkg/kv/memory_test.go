package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_GetSet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}

	if err := store.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "v" {
		t.Errorf("Expected %q, got %q", "v", got)
	}
}

func TestMemoryStore_Incr(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := store.Incr(ctx, "counter")
		if err != nil {
			t.Fatalf("Incr failed: %v", err)
		}
		if n != want {
			t.Errorf("Expected counter %d, got %d", want, n)
		}
	}
}

func TestMemoryStore_Expire(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Expire(ctx, "k", -time.Second); err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected expired key to be gone, got %v", err)
	}
}

func TestMemoryStore_KeysGlob(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, key := range []string{"asylum:a", "asylum:b", "messages:a"} {
		if err := store.Set(ctx, key, "x"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	keys, err := store.Keys(ctx, "asylum:*")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("Expected 2 matching keys, got %d (%v)", len(keys), keys)
	}
}

func TestMemoryStore_UpdateMissingKey(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.Update(ctx, "fresh", func(current string, found bool) (string, error) {
		if found {
			t.Errorf("Expected found=false for missing key")
		}
		return "first", nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := store.Get(ctx, "fresh")
	if err != nil || got != "first" {
		t.Errorf("Expected %q, got %q (err %v)", "first", got, err)
	}
}

func TestMemoryStore_UpdateAbortsOnError(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	if err := store.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	err := store.Update(ctx, "k", func(current string, found bool) (string, error) {
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected fn error surfaced unchanged, got %v", err)
	}

	got, _ := store.Get(ctx, "k")
	if got != "v" {
		t.Errorf("Expected value untouched after aborted update, got %q", got)
	}
}

func TestMemoryStore_UpdateConcurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.Update(ctx, "list", func(current string, found bool) (string, error) {
				if !found {
					return fmt.Sprintf("%d", i), nil
				}
				return fmt.Sprintf("%s,%d", current, i), nil
			})
			if err != nil {
				t.Errorf("Update failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := store.Get(ctx, "list")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	count := 1
	for _, c := range got {
		if c == ',' {
			count++
		}
	}
	if count != writers {
		t.Errorf("Expected %d entries after concurrent updates, got %d (%q)", writers, count, got)
	}
}
