// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

package bucket

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no object exists at the key.
var ErrNotFound = errors.New("bucket: object not found")

// Object is a stored object: an opaque body plus a flat string-keyed
// metadata map.
type Object struct {
	Body     []byte
	Metadata map[string]string
}

// Entry is one result of a List call: the object's key and its
// metadata. Bodies are never part of listings.
type Entry struct {
	Key      string
	Metadata map[string]string
}

// Store is the object store contract the broker runs against. Put is
// a full overwrite; there is no conditional write. Delete of a
// nonexistent key is not an error — deletes are idempotent so that a
// garbage collection sweep racing another sweep stays quiet.
type Store interface {
	// Head reports whether an object exists at key.
	Head(ctx context.Context, key string) (bool, error)

	// Get returns the object at key, or ErrNotFound.
	Get(ctx context.Context, key string) (*Object, error)

	// Put stores body and metadata at key, overwriting any existing
	// object unconditionally.
	Put(ctx context.Context, key string, body []byte, metadata map[string]string) error

	// Delete removes the object at key. Removing a nonexistent key
	// succeeds.
	Delete(ctx context.Context, key string) error

	// List returns the key and metadata of every stored object, in
	// unspecified order.
	List(ctx context.Context) ([]Entry, error)
}
