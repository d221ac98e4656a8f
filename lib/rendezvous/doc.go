// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

// Package rendezvous implements the broker that pairs two peers for a
// WebRTC handshake.
//
// The broker is stateless: every bit of session state lives in the
// object store as auth and room records, so any number of broker
// instances can serve the same store. A peer first obtains an identity
// token (Ident), then repeatedly polls (Poll) to create or join a
// room, exchange SDP and ICE candidates with the other peer, and
// receive its poll cadence. Once both session descriptions and at
// least one complete candidate list have been exchanged, the broker
// schedules the handshake by sending both peers the same ConnectAt
// instant.
//
// Records are never deleted on the request path. Liveness is
// expressed through poll deadlines in record metadata, and a
// background sweep (GC) deletes a room once either of its peers has
// missed its deadline by more than the grace period, along with the
// identity records bound to it.
package rendezvous
