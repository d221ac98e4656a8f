// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

package bucket

import (
	"context"
	"maps"
	"sync"
)

// NewMemory returns an empty in-memory Store. Safe for concurrent use.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]Object)}
}

// Memory is an in-memory Store implementation. It copies bodies and
// metadata on the way in and out, so callers can't alias stored state.
type Memory struct {
	mu      sync.Mutex
	objects map[string]Object
}

// Head reports whether an object exists at key.
func (m *Memory) Head(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

// Get returns a copy of the object at key, or ErrNotFound.
func (m *Memory) Get(_ context.Context, key string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &Object{
		Body:     append([]byte(nil), stored.Body...),
		Metadata: maps.Clone(stored.Metadata),
	}, nil
}

// Put stores body and metadata at key, overwriting unconditionally.
func (m *Memory) Put(_ context.Context, key string, body []byte, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{
		Body:     append([]byte(nil), body...),
		Metadata: maps.Clone(metadata),
	}
	return nil
}

// Delete removes the object at key. Removing a nonexistent key
// succeeds.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// List returns every stored object's key and metadata.
func (m *Memory) List(_ context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]Entry, 0, len(m.objects))
	for key, stored := range m.objects {
		entries = append(entries, Entry{
			Key:      key,
			Metadata: maps.Clone(stored.Metadata),
		})
	}
	return entries, nil
}
