// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

package bucket

import (
	"context"
	"errors"
	"sort"
	"testing"
)

// storeUnderTest runs the shared Store contract tests against an
// implementation.
func storeUnderTest(t *testing.T, name string, open func(t *testing.T) Store) {
	t.Run(name, func(t *testing.T) {
		t.Run("get_missing", func(t *testing.T) {
			store := open(t)
			_, err := store.Get(context.Background(), "auth:MISSING")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Get missing = %v, want ErrNotFound", err)
			}
		})

		t.Run("head", func(t *testing.T) {
			store := open(t)
			ctx := context.Background()
			exists, err := store.Head(ctx, "room:ABC123")
			if err != nil || exists {
				t.Errorf("Head missing = (%v, %v), want (false, nil)", exists, err)
			}
			if err := store.Put(ctx, "room:ABC123", []byte("body"), map[string]string{"k": "v"}); err != nil {
				t.Fatalf("Put: %v", err)
			}
			exists, err = store.Head(ctx, "room:ABC123")
			if err != nil || !exists {
				t.Errorf("Head present = (%v, %v), want (true, nil)", exists, err)
			}
		})

		t.Run("put_get_roundtrip", func(t *testing.T) {
			store := open(t)
			ctx := context.Background()
			body := []byte{0xA1, 0x64, 'r', 'o', 'o', 'm', 0xF6}
			metadata := map[string]string{"kill_at": "1767225600", "note": ""}
			if err := store.Put(ctx, "auth:TOKEN1", body, metadata); err != nil {
				t.Fatalf("Put: %v", err)
			}
			obj, err := store.Get(ctx, "auth:TOKEN1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(obj.Body) != string(body) {
				t.Errorf("body = %x, want %x", obj.Body, body)
			}
			if obj.Metadata["kill_at"] != "1767225600" || obj.Metadata["note"] != "" {
				t.Errorf("metadata = %v, want %v", obj.Metadata, metadata)
			}
		})

		t.Run("put_overwrites", func(t *testing.T) {
			store := open(t)
			ctx := context.Background()
			if err := store.Put(ctx, "auth:T", []byte("old"), map[string]string{"v": "1"}); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := store.Put(ctx, "auth:T", []byte("new"), map[string]string{"v": "2"}); err != nil {
				t.Fatalf("Put overwrite: %v", err)
			}
			obj, err := store.Get(ctx, "auth:T")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(obj.Body) != "new" || obj.Metadata["v"] != "2" {
				t.Errorf("got (%q, %v), want overwritten object", obj.Body, obj.Metadata)
			}
		})

		t.Run("delete_idempotent", func(t *testing.T) {
			store := open(t)
			ctx := context.Background()
			if err := store.Put(ctx, "room:GONE01", []byte("x"), nil); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := store.Delete(ctx, "room:GONE01"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := store.Delete(ctx, "room:GONE01"); err != nil {
				t.Errorf("second Delete = %v, want nil", err)
			}
			if _, err := store.Get(ctx, "room:GONE01"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get after delete = %v, want ErrNotFound", err)
			}
		})

		t.Run("list_keys_and_metadata", func(t *testing.T) {
			store := open(t)
			ctx := context.Background()
			if err := store.Put(ctx, "auth:AAA", []byte("1"), map[string]string{"kill_at": "10"}); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := store.Put(ctx, "room:BBB", []byte("2"), map[string]string{"offer_token": "AAA"}); err != nil {
				t.Fatalf("Put: %v", err)
			}
			entries, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(entries) != 2 {
				t.Fatalf("List returned %d entries, want 2", len(entries))
			}
			sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
			if entries[0].Key != "auth:AAA" || entries[0].Metadata["kill_at"] != "10" {
				t.Errorf("entry 0 = %+v", entries[0])
			}
			if entries[1].Key != "room:BBB" || entries[1].Metadata["offer_token"] != "AAA" {
				t.Errorf("entry 1 = %+v", entries[1])
			}
		})
	})
}

func TestStores(t *testing.T) {
	storeUnderTest(t, "memory", func(t *testing.T) Store {
		return NewMemory()
	})
	storeUnderTest(t, "dir", func(t *testing.T) Store {
		store, err := NewDir(t.TempDir())
		if err != nil {
			t.Fatalf("NewDir: %v", err)
		}
		return store
	})
}

func TestDirRejectsInvalidKeys(t *testing.T) {
	store, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	ctx := context.Background()

	invalid := []string{"", "noprefix", "auth:", ":rest", "auth:../escape", "a/b:c", "auth:two:colons"}
	for _, key := range invalid {
		if err := store.Put(ctx, key, nil, nil); err == nil {
			t.Errorf("Put(%q) succeeded, want error", key)
		}
	}
}

func TestMemoryCopiesOnGet(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	if err := store.Put(ctx, "auth:X", []byte("abc"), map[string]string{"k": "v"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	obj, err := store.Get(ctx, "auth:X")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	obj.Body[0] = 'z'
	obj.Metadata["k"] = "mutated"

	fresh, err := store.Get(ctx, "auth:X")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(fresh.Body) != "abc" || fresh.Metadata["k"] != "v" {
		t.Error("mutating a returned object changed stored state")
	}
}
