// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

// Package bucket defines the object store the rendezvous broker
// persists into, and provides two implementations of it.
//
// The contract is deliberately small: a flat key space where each
// object carries an opaque body plus a string-keyed metadata map, and
// where listing returns metadata without ever touching bodies. That
// last property is load-bearing — the garbage collector sweeps every
// stored record on a timer and must be able to decide expiry from
// metadata alone.
//
// Memory is the mutex-guarded in-memory implementation used by tests
// and single-node development. Dir persists to a local directory with
// zstd-compressed bodies and sidecar metadata files.
package bucket
