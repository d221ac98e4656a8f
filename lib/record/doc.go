// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

// Package record binds a typed payload and typed structured metadata to
// a single object-store key. A record's body is the CBOR-encoded
// payload; its metadata is a flat string map the type knows how to
// encode and decode. Keys are random, fixed-length, uppercase
// alphanumeric, and prefixed by entity kind ("auth:…", "room:…").
//
// Records track a dirty flag: Write is a no-op unless something marked
// the record modified, so a request that only reads never rewrites
// storage.
package record
