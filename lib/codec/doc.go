// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR serialization used for stored record
// bodies. It wraps fxamacker/cbor with a fixed configuration so every
// package serializes identically: Core Deterministic Encoding on the
// way out, string-keyed maps for any-typed targets on the way in.
package codec
