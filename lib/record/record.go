// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/Tocutoeltuco/chessagon/lib/bucket"
	"github.com/Tocutoeltuco/chessagon/lib/clock"
	"github.com/Tocutoeltuco/chessagon/lib/codec"
)

// keyAlphabet is the character set random keys are sampled from.
// Uppercase plus digits keeps room codes easy to read aloud and type.
const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Metadata is the structured view of an object's flat metadata map.
// DecodeMetadata must either populate every field or fail: a stored
// map missing a required key is storage corruption, not a recoverable
// state.
type Metadata interface {
	EncodeMetadata() map[string]string
	DecodeMetadata(raw map[string]string) error
}

// Type describes one kind of stored record: its key prefix and length,
// plus constructors for fresh and blank state.
type Type[P any, M Metadata] struct {
	// Prefix is the key namespace, without the colon ("auth", "room").
	Prefix string

	// KeyLength is the number of random characters in a key.
	KeyLength int

	// Defaults returns the payload and metadata of a newly created
	// record. now is the creation time, for metadata with relative
	// deadlines.
	Defaults func(now time.Time) (P, M)

	// Blank returns an empty metadata value for DecodeMetadata to
	// populate during Load.
	Blank func() M
}

// Record is one stored entity. Mutators must call MarkDirty or the
// next Write silently skips persisting.
type Record[P any, M Metadata] struct {
	// Key is the random portion of the storage key, without prefix.
	Key string

	Payload P
	Meta    M

	dirty bool
	typ   *Type[P, M]
}

// StorageKey returns the full object-store key for a record key of
// this type.
func (t *Type[P, M]) StorageKey(key string) string {
	return t.Prefix + ":" + key
}

// Create allocates a new record under a freshly generated key. The key
// is sampled at random and probed against the store for collisions
// until a free one is found; with 36^6 room codes and 36^32 tokens a
// retry is already rare, two in a row effectively impossible. The
// record starts dirty so the first Write persists it.
func (t *Type[P, M]) Create(ctx context.Context, store bucket.Store, clk clock.Clock) (*Record[P, M], error) {
	key, err := t.newKey(ctx, store)
	if err != nil {
		return nil, err
	}
	payload, meta := t.Defaults(clk.Now())
	return &Record[P, M]{
		Key:     key,
		Payload: payload,
		Meta:    meta,
		dirty:   true,
		typ:     t,
	}, nil
}

// Load fetches the record stored under key. Returns
// bucket.ErrNotFound if no such record exists.
func (t *Type[P, M]) Load(ctx context.Context, store bucket.Store, key string) (*Record[P, M], error) {
	obj, err := store.Get(ctx, t.StorageKey(key))
	if err != nil {
		return nil, err
	}

	var payload P
	if err := codec.Unmarshal(obj.Body, &payload); err != nil {
		return nil, fmt.Errorf("decoding %s record body %q: %w", t.Prefix, key, err)
	}

	meta := t.Blank()
	if err := meta.DecodeMetadata(obj.Metadata); err != nil {
		return nil, fmt.Errorf("decoding %s record metadata %q: %w", t.Prefix, key, err)
	}

	return &Record[P, M]{
		Key:     key,
		Payload: payload,
		Meta:    meta,
		typ:     t,
	}, nil
}

// MarkDirty flags the record so the next Write persists it.
func (r *Record[P, M]) MarkDirty() { r.dirty = true }

// Dirty reports whether the record has unpersisted modifications.
func (r *Record[P, M]) Dirty() bool { return r.dirty }

// Write persists the record with a single unconditional put: payload
// as the body, metadata as the object's attribute map. No-op when the
// record is clean.
func (r *Record[P, M]) Write(ctx context.Context, store bucket.Store) error {
	if !r.dirty {
		return nil
	}

	body, err := codec.Marshal(r.Payload)
	if err != nil {
		return fmt.Errorf("encoding %s record body %q: %w", r.typ.Prefix, r.Key, err)
	}
	if err := store.Put(ctx, r.typ.StorageKey(r.Key), body, r.Meta.EncodeMetadata()); err != nil {
		return fmt.Errorf("writing %s record %q: %w", r.typ.Prefix, r.Key, err)
	}

	r.dirty = false
	return nil
}

// newKey generates a random key and retries until the store has no
// object under it.
func (t *Type[P, M]) newKey(ctx context.Context, store bucket.Store) (string, error) {
	for {
		key, err := randomKey(t.KeyLength)
		if err != nil {
			return "", err
		}
		exists, err := store.Head(ctx, t.StorageKey(key))
		if err != nil {
			return "", fmt.Errorf("probing key %q: %w", key, err)
		}
		if !exists {
			return key, nil
		}
	}
}

// randomKey samples length characters from the key alphabet using
// crypto/rand. Rejection sampling keeps the distribution uniform.
func randomKey(length int) (string, error) {
	// Largest multiple of len(keyAlphabet) that fits in a byte; bytes
	// at or above it would bias the low end of the alphabet.
	const limit = byte(256 - 256%len(keyAlphabet))

	key := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(key) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("reading random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			key = append(key, keyAlphabet[int(b)%len(keyAlphabet)])
			if len(key) == length {
				break
			}
		}
	}
	return string(key), nil
}

// IsKey reports whether s is a well-formed key of the given length:
// exactly length characters, all from the key alphabet. Used to
// reject malformed tokens and room codes before touching storage.
func IsKey(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
